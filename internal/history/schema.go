package history

import "github.com/riftwatch/riftwatch/internal/riot"

// statRule extracts one scalar feature from a participant's post-game data.
// Boolean stats read as 0/1 so they average into occurrence rates.
type statRule struct {
	name string
	fn   func(p riot.Participant) float64
}

var deltaWindows = []struct{ suffix, key string }{
	{"0_to_10", "0-10"},
	{"10_to_20", "10-20"},
	{"20_to_30", "20-30"},
	{"30_to_40", "30-40"},
}

func deltaRules(prefix string, pick func(p riot.Participant) map[string]float64) []statRule {
	rules := make([]statRule, 0, len(deltaWindows))
	for _, w := range deltaWindows {
		key := w.key
		rules = append(rules, statRule{
			name: prefix + w.suffix,
			// Absent windows (short games, old records) read as zero.
			fn: func(p riot.Participant) float64 { return pick(p)[key] },
		})
	}
	return rules
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// statRules is the fixed post-game extraction schema. Every processed game
// contributes one value per rule; the record carries their averages.
func statRules() []statRule {
	rules := []statRule{
		{"gold_earned", func(p riot.Participant) float64 { return p.Stats.GoldEarned }},
		{"gold_spent", func(p riot.Participant) float64 { return p.Stats.GoldSpent }},
	}
	rules = append(rules, deltaRules("gold_per_min_", func(p riot.Participant) map[string]float64 {
		return p.Timeline.GoldPerMinDeltas
	})...)
	rules = append(rules, []statRule{
		{"damage_to_champions_total", func(p riot.Participant) float64 { return p.Stats.TotalDamageDealtToChampions }},
		{"damage_to_champions_truetype", func(p riot.Participant) float64 { return p.Stats.TrueDamageDealtToChampions }},
		{"damage_to_champions_physical", func(p riot.Participant) float64 { return p.Stats.PhysicalDamageDealtToChampions }},
		{"damage_to_champions_magical", func(p riot.Participant) float64 { return p.Stats.MagicDamageDealtToChampions }},
		{"kills", func(p riot.Participant) float64 { return p.Stats.Kills }},
		{"assists", func(p riot.Participant) float64 { return p.Stats.Assists }},
		{"double_kills", func(p riot.Participant) float64 { return p.Stats.DoubleKills }},
		{"triple_kills", func(p riot.Participant) float64 { return p.Stats.TripleKills }},
		{"quadra_kills", func(p riot.Participant) float64 { return p.Stats.QuadraKills }},
		{"penta_kills", func(p riot.Participant) float64 { return p.Stats.PentaKills }},
		{"hexa_kills", func(p riot.Participant) float64 { return p.Stats.UnrealKills }},
		{"max_kill_num_multikill", func(p riot.Participant) float64 { return p.Stats.LargestMultiKill }},
		{"killing_sprees", func(p riot.Participant) float64 { return p.Stats.KillingSprees }},
		{"max_kill_num_killingspree", func(p riot.Participant) float64 { return p.Stats.LargestKillingSpree }},
		{"damage_taken_total", func(p riot.Participant) float64 { return p.Stats.TotalDamageTaken }},
		{"damage_taken_truetype", func(p riot.Participant) float64 { return p.Stats.TrueDamageTaken }},
		{"damage_taken_physical", func(p riot.Participant) float64 { return p.Stats.PhysicalDamageTaken }},
		{"damage_taken_magical", func(p riot.Participant) float64 { return p.Stats.MagicalDamageTaken }},
		{"damage_taken_mitigated", func(p riot.Participant) float64 { return p.Stats.DamageSelfMitigated }},
	}...)
	rules = append(rules, deltaRules("damage_taken_per_min_", func(p riot.Participant) map[string]float64 {
		return p.Timeline.DamageTakenPerMinDeltas
	})...)
	rules = append(rules, []statRule{
		{"longest_time_living", func(p riot.Participant) float64 { return p.Stats.LongestTimeSpentLiving }},
		{"damage_healed", func(p riot.Participant) float64 { return p.Stats.TotalHeal }},
		{"targets_healed", func(p riot.Participant) float64 { return p.Stats.TotalUnitsHealed }},
		{"deaths", func(p riot.Participant) float64 { return p.Stats.Deaths }},
		{"wards_placed", func(p riot.Participant) float64 { return p.Stats.WardsPlaced }},
		{"wards_killed", func(p riot.Participant) float64 { return p.Stats.WardsKilled }},
		{"normal_wards_bought", func(p riot.Participant) float64 { return p.Stats.SightWardsBoughtInGame }},
		{"control_wards_bought", func(p riot.Participant) float64 { return p.Stats.VisionWardsBoughtInGame }},
		{"player_score_rank", func(p riot.Participant) float64 { return p.Stats.TotalScoreRank }},
		{"player_score_total", func(p riot.Participant) float64 { return p.Stats.TotalPlayerScore }},
		{"player_score_objective", func(p riot.Participant) float64 { return p.Stats.ObjectivePlayerScore }},
		{"player_score_combat", func(p riot.Participant) float64 { return p.Stats.CombatPlayerScore }},
		{"player_score_vision", func(p riot.Participant) float64 { return p.Stats.VisionScore }},
		{"damage_to_turrets_total", func(p riot.Participant) float64 { return p.Stats.DamageDealtToTurrets }},
		{"damage_to_pit_monsters_total", func(p riot.Participant) float64 {
			return p.Stats.DamageDealtToObjectives - p.Stats.DamageDealtToTurrets
		}},
		{"damage_to_creeps_and_wards_total", func(p riot.Participant) float64 {
			return p.Stats.TotalDamageDealt - p.Stats.TotalDamageDealtToChampions - p.Stats.DamageDealtToObjectives
		}},
		{"turrets_killed", func(p riot.Participant) float64 { return p.Stats.TurretKills }},
		{"inhibitors_killed", func(p riot.Participant) float64 { return p.Stats.InhibitorKills }},
		{"damage_largest_criticalstrike", func(p riot.Participant) float64 { return p.Stats.LargestCriticalStrike }},
		{"minions_killed_total", func(p riot.Participant) float64 { return p.Stats.TotalMinionsKilled }},
		{"minions_killed_jungle", func(p riot.Participant) float64 { return p.Stats.NeutralMinionsKilled }},
		{"minions_killed_jungle_allyside", func(p riot.Participant) float64 { return p.Stats.NeutralMinionsKilledTeamJungle }},
		{"minions_killed_jungle_enemyside", func(p riot.Participant) float64 { return p.Stats.NeutralMinionsKilledEnemyJungle }},
	}...)
	rules = append(rules, deltaRules("minions_killed_per_min_", func(p riot.Participant) map[string]float64 {
		return p.Timeline.CreepsPerMinDeltas
	})...)
	rules = append(rules, deltaRules("xp_gained_per_min_", func(p riot.Participant) map[string]float64 {
		return p.Timeline.XPPerMinDeltas
	})...)
	rules = append(rules, []statRule{
		{"cc_score_applied_pre_mitigation", func(p riot.Participant) float64 { return p.Stats.TotalTimeCrowdControlDealt }},
		{"cc_score_applied_post_mitigation", func(p riot.Participant) float64 { return p.Stats.TimeCCingOthers }},
		{"scored_first_blood_kill", func(p riot.Participant) float64 { return flag(p.Stats.FirstBloodKill) }},
		{"scored_first_blood_assist", func(p riot.Participant) float64 { return flag(p.Stats.FirstBloodAssist) }},
		{"scored_first_tower_kill", func(p riot.Participant) float64 { return flag(p.Stats.FirstTowerKill) }},
		{"scored_first_tower_assist", func(p riot.Participant) float64 { return flag(p.Stats.FirstTowerAssist) }},
		{"scored_first_inhibitor_kill", func(p riot.Participant) float64 { return flag(p.Stats.FirstInhibitorKill) }},
		{"scored_first_inhibitor_assist", func(p riot.Participant) float64 { return flag(p.Stats.FirstInhibitorAssist) }},
	}...)
	rules = append(rules, deltaRules("damage_taken_diff_per_min_", func(p riot.Participant) map[string]float64 {
		return p.Timeline.DamageTakenDiffPerMin
	})...)
	rules = append(rules, deltaRules("minions_killed_diff_per_min_", func(p riot.Participant) map[string]float64 {
		return p.Timeline.CSDiffPerMinDeltas
	})...)
	rules = append(rules, deltaRules("xp_gained_diff_per_min_", func(p riot.Participant) map[string]float64 {
		return p.Timeline.XPDiffPerMinDeltas
	})...)
	rules = append(rules, statRule{
		name: "champion_level",
		fn:   func(p riot.Participant) float64 { return p.Stats.ChampLevel },
	})
	return rules
}
