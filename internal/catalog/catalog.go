// Package catalog is the static endpoint catalog: region <=> platform <=> host
// resolution plus the vendor URL templates and their rate-limit classes.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrUnknownRegion is returned when a region name is not configured.
	ErrUnknownRegion = errors.New("catalog: unknown region")
	// ErrUnknownPlatform is returned when a platform code is not configured.
	ErrUnknownPlatform = errors.New("catalog: unknown platform")
)

// Rate-limit classes. These are the method keys recorded in the request
// ledger; several endpoints share one class on purpose.
const (
	MethodSummonerByName = "/lol/summoner/v3/summoners/by-name/{summonerName}"
	MethodLeagues        = "leagues-v3 endpoints"
	MethodMatchlist      = "/lol/match/v3/matchlists/by-account/{accountId}"
	MethodMatch          = "/lol/match/v3/[matches,timelines]"
	MethodSpectator      = "All other endpoints"
)

type hostEntry struct {
	host      string
	platforms []string
	region    string
}

// Platforms are multiple for NA1/NA.
var hosts = []hostEntry{
	{"br1.api.riotgames.com", []string{"BR1"}, "BR"},
	{"eun1.api.riotgames.com", []string{"EUN1"}, "EUNE"},
	{"euw1.api.riotgames.com", []string{"EUW1"}, "EUW"},
	{"jp1.api.riotgames.com", []string{"JP1"}, "JP"},
	{"kr.api.riotgames.com", []string{"KR"}, "KR"},
	{"la1.api.riotgames.com", []string{"LA1"}, "LAN"},
	{"la2.api.riotgames.com", []string{"LA2"}, "LAS"},
	{"na1.api.riotgames.com", []string{"NA1", "NA"}, "NA"},
	{"oc1.api.riotgames.com", []string{"OC1"}, "OCE"},
	{"tr1.api.riotgames.com", []string{"TR1"}, "TR"},
	{"ru.api.riotgames.com", []string{"RU"}, "RU"},
	{"pbe1.api.riotgames.com", []string{"PBE1"}, "PBE"},
}

// HostForRegion resolves the API host serving a region name.
func HostForRegion(region string) (string, error) {
	for _, h := range hosts {
		if h.region == region {
			return h.host, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, region)
}

// HostForPlatform resolves the API host serving a platform code.
func HostForPlatform(platform string) (string, error) {
	for _, h := range hosts {
		for _, p := range h.platforms {
			if p == platform {
				return h.host, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
}

// RegionForPlatform maps a platform code to its region name.
func RegionForPlatform(platform string) (string, error) {
	for _, h := range hosts {
		for _, p := range h.platforms {
			if p == platform {
				return h.region, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
}

// PlatformForRegion maps a region name to its primary platform code.
func PlatformForRegion(region string) (string, error) {
	for _, h := range hosts {
		if h.region == region {
			return h.platforms[0], nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, region)
}

// Regions returns every configured region name.
func Regions() []string {
	names := make([]string, 0, len(hosts))
	for _, h := range hosts {
		names = append(names, h.region)
	}
	return names
}

// URL builders. The API key travels as a query parameter, matching the
// vendor's documented scheme.

func SummonerByNameURL(host, name, apiKey string) string {
	return fmt.Sprintf("https://%s/lol/summoner/v3/summoners/by-name/%s?api_key=%s",
		host, url.PathEscape(name), apiKey)
}

func TiersBySummonerURL(host string, summonerID int64, apiKey string) string {
	return fmt.Sprintf("https://%s/lol/league/v3/positions/by-summoner/%d?api_key=%s",
		host, summonerID, apiKey)
}

func SpectatorBySummonerURL(host string, summonerID int64, apiKey string) string {
	return fmt.Sprintf("https://%s/lol/spectator/v3/active-games/by-summoner/%d?api_key=%s",
		host, summonerID, apiKey)
}

// MatchlistByAccountURL limits results to ranked solo queue (queue 420) and a
// [beginTime, endTime) window in epoch milliseconds.
func MatchlistByAccountURL(host string, accountID int64, beginTime, endTime int64, apiKey string) string {
	return fmt.Sprintf("https://%s/lol/match/v3/matchlists/by-account/%d?queue=420&beginTime=%d&endTime=%d&api_key=%s",
		host, accountID, beginTime, endTime, apiKey)
}

func MatchByIDURL(host string, matchID int64, apiKey string) string {
	return fmt.Sprintf("https://%s/lol/match/v3/matches/%d?api_key=%s", host, matchID, apiKey)
}

func TimelineByMatchURL(host string, matchID int64, apiKey string) string {
	return fmt.Sprintf("https://%s/lol/match/v3/timelines/by-match/%d?api_key=%s", host, matchID, apiKey)
}
