package catalog

import "fmt"

// DataDragon static-data endpoints. These sit on a separate CDN without the
// vendor quota system, so calls to them bypass the request ledger.

const DataDragonVersionsURL = "https://ddragon.leagueoflegends.com/api/versions.json"

func DataDragonProfileIconsURL(version string) string {
	return fmt.Sprintf("http://ddragon.leagueoflegends.com/cdn/%s/data/en_US/profileicon.json", version)
}

func DataDragonChampionsURL(version string) string {
	return fmt.Sprintf("http://ddragon.leagueoflegends.com/cdn/%s/data/en_US/champion.json", version)
}

func DataDragonChampionURL(version, championID string) string {
	return fmt.Sprintf("http://ddragon.leagueoflegends.com/cdn/%s/data/en_US/champion/%s.json", version, championID)
}

func DataDragonItemsURL(version string) string {
	return fmt.Sprintf("http://ddragon.leagueoflegends.com/cdn/%s/data/en_US/item.json", version)
}

func DataDragonSummonerSpellsURL(version string) string {
	return fmt.Sprintf("http://ddragon.leagueoflegends.com/cdn/%s/data/en_US/summoner.json", version)
}

func DataDragonRunesURL(version string) string {
	return fmt.Sprintf("http://ddragon.leagueoflegends.com/cdn/%s/data/en_US/runesReforged.json", version)
}
