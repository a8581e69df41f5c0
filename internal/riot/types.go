package riot

// Wire types for the vendor API. Response bodies are persisted verbatim as
// JSON, so these structs only name the fields the pipeline reads; decoding is
// lossy on purpose and missing subfields default to 0/false.

// Summoner is the account record behind a summoner name.
type Summoner struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"accountId"`
	Name      string `json:"name"`
}

// LeaguePosition is one ranked queue standing of a summoner.
type LeaguePosition struct {
	QueueType string `json:"queueType"`
	Tier      string `json:"tier"`
	Rank      string `json:"rank"`
}

// RankedSoloQueue is the queue type whose standing feeds tier averages.
const RankedSoloQueue = "RANKED_SOLO_5x5"

// SoloQueueID is the ranked solo queue id; other queues are ignored.
const SoloQueueID = 420

// CurrentMatch is the spectator view of a game in progress.
type CurrentMatch struct {
	GameID            int64                `json:"gameId"`
	GameQueueConfigID int64                `json:"gameQueueConfigId"`
	GameStartTime     int64                `json:"gameStartTime"`
	PlatformID        string               `json:"platformId"`
	Participants      []CurrentParticipant `json:"participants"`
}

type CurrentParticipant struct {
	TeamID       int    `json:"teamId"`
	ChampionID   int    `json:"championId"`
	SummonerName string `json:"summonerName"`
	SummonerID   int64  `json:"summonerId"`
	Spell1ID     int    `json:"spell1Id"`
	Spell2ID     int    `json:"spell2Id"`
}

// Matchlist is a time-bounded page of match references for one account.
type Matchlist struct {
	Matches []MatchReference `json:"matches"`
}

type MatchReference struct {
	GameID     int64  `json:"gameId"`
	PlatformID string `json:"platformId"`
	Champion   int    `json:"champion"`
	Lane       string `json:"lane"`
	Role       string `json:"role"`
	Timestamp  int64  `json:"timestamp"`
}

// MatchResult is the post-game record of a finished match.
type MatchResult struct {
	GameID                int64                 `json:"gameId"`
	GameCreation          int64                 `json:"gameCreation"`
	GameDuration          int64                 `json:"gameDuration"`
	GameVersion           string                `json:"gameVersion"`
	PlatformID            string                `json:"platformId"`
	Participants          []Participant         `json:"participants"`
	ParticipantIdentities []ParticipantIdentity `json:"participantIdentities"`
}

type ParticipantIdentity struct {
	ParticipantID int    `json:"participantId"`
	Player        Player `json:"player"`
}

type Player struct {
	AccountID        int64  `json:"accountId"`
	CurrentAccountID int64  `json:"currentAccountId"`
	SummonerName     string `json:"summonerName"`
}

type Participant struct {
	ParticipantID int                 `json:"participantId"`
	TeamID        int                 `json:"teamId"`
	ChampionID    int                 `json:"championId"`
	Spell1ID      int                 `json:"spell1Id"`
	Spell2ID      int                 `json:"spell2Id"`
	Stats         ParticipantStats    `json:"stats"`
	Timeline      ParticipantTimeline `json:"timeline"`
}

type ParticipantStats struct {
	Win                             bool    `json:"win"`
	GoldEarned                      float64 `json:"goldEarned"`
	GoldSpent                       float64 `json:"goldSpent"`
	TotalDamageDealt                float64 `json:"totalDamageDealt"`
	TotalDamageDealtToChampions     float64 `json:"totalDamageDealtToChampions"`
	TrueDamageDealtToChampions      float64 `json:"trueDamageDealtToChampions"`
	PhysicalDamageDealtToChampions  float64 `json:"physicalDamageDealtToChampions"`
	MagicDamageDealtToChampions     float64 `json:"magicDamageDealtToChampions"`
	Kills                           float64 `json:"kills"`
	Deaths                          float64 `json:"deaths"`
	Assists                         float64 `json:"assists"`
	DoubleKills                     float64 `json:"doubleKills"`
	TripleKills                     float64 `json:"tripleKills"`
	QuadraKills                     float64 `json:"quadraKills"`
	PentaKills                      float64 `json:"pentaKills"`
	UnrealKills                     float64 `json:"unrealKills"`
	LargestMultiKill                float64 `json:"largestMultiKill"`
	KillingSprees                   float64 `json:"killingSprees"`
	LargestKillingSpree             float64 `json:"largestKillingSpree"`
	TotalDamageTaken                float64 `json:"totalDamageTaken"`
	TrueDamageTaken                 float64 `json:"trueDamageTaken"`
	PhysicalDamageTaken             float64 `json:"physicalDamageTaken"`
	MagicalDamageTaken              float64 `json:"magicalDamageTaken"`
	DamageSelfMitigated             float64 `json:"damageSelfMitigated"`
	LongestTimeSpentLiving          float64 `json:"longestTimeSpentLiving"`
	TotalHeal                       float64 `json:"totalHeal"`
	TotalUnitsHealed                float64 `json:"totalUnitsHealed"`
	WardsPlaced                     float64 `json:"wardsPlaced"`
	WardsKilled                     float64 `json:"wardsKilled"`
	SightWardsBoughtInGame          float64 `json:"sightWardsBoughtInGame"`
	VisionWardsBoughtInGame         float64 `json:"visionWardsBoughtInGame"`
	TotalScoreRank                  float64 `json:"totalScoreRank"`
	TotalPlayerScore                float64 `json:"totalPlayerScore"`
	ObjectivePlayerScore            float64 `json:"objectivePlayerScore"`
	CombatPlayerScore               float64 `json:"combatPlayerScore"`
	VisionScore                     float64 `json:"visionScore"`
	DamageDealtToTurrets            float64 `json:"damageDealtToTurrets"`
	DamageDealtToObjectives         float64 `json:"damageDealtToObjectives"`
	TurretKills                     float64 `json:"turretKills"`
	InhibitorKills                  float64 `json:"inhibitorKills"`
	LargestCriticalStrike           float64 `json:"largestCriticalStrike"`
	TotalMinionsKilled              float64 `json:"totalMinionsKilled"`
	NeutralMinionsKilled            float64 `json:"neutralMinionsKilled"`
	NeutralMinionsKilledTeamJungle  float64 `json:"neutralMinionsKilledTeamJungle"`
	NeutralMinionsKilledEnemyJungle float64 `json:"neutralMinionsKilledEnemyJungle"`
	TotalTimeCrowdControlDealt      float64 `json:"totalTimeCrowdControlDealt"`
	TimeCCingOthers                 float64 `json:"timeCCingOthers"`
	ChampLevel                      float64 `json:"champLevel"`
	FirstBloodKill                  bool    `json:"firstBloodKill"`
	FirstBloodAssist                bool    `json:"firstBloodAssist"`
	FirstTowerKill                  bool    `json:"firstTowerKill"`
	FirstTowerAssist                bool    `json:"firstTowerAssist"`
	FirstInhibitorKill              bool    `json:"firstInhibitorKill"`
	FirstInhibitorAssist            bool    `json:"firstInhibitorAssist"`
	Perk0                           int     `json:"perk0"`
	Perk1                           int     `json:"perk1"`
	Perk2                           int     `json:"perk2"`
	Perk3                           int     `json:"perk3"`
	Perk4                           int     `json:"perk4"`
	Perk5                           int     `json:"perk5"`
}

// ParticipantTimeline carries the per-minute delta windows; absent windows
// stay nil and read back as zero.
type ParticipantTimeline struct {
	Lane                    string             `json:"lane"`
	Role                    string             `json:"role"`
	GoldPerMinDeltas        map[string]float64 `json:"goldPerMinDeltas"`
	CreepsPerMinDeltas      map[string]float64 `json:"creepsPerMinDeltas"`
	XPPerMinDeltas          map[string]float64 `json:"xpPerMinDeltas"`
	DamageTakenPerMinDeltas map[string]float64 `json:"damageTakenPerMinDeltas"`
	DamageTakenDiffPerMin   map[string]float64 `json:"damageTakenDiffPerMinDeltas"`
	CSDiffPerMinDeltas      map[string]float64 `json:"csDiffPerMinDeltas"`
	XPDiffPerMinDeltas      map[string]float64 `json:"xpDiffPerMinDeltas"`
}

// Timeline is the minute-by-minute record of a finished match.
type Timeline struct {
	Frames []Frame `json:"frames"`
}

type Frame struct {
	Timestamp         int64                       `json:"timestamp"`
	ParticipantFrames map[string]ParticipantFrame `json:"participantFrames"`
	Events            []Event                     `json:"events"`
}

type ParticipantFrame struct {
	ParticipantID int       `json:"participantId"`
	Position      *Position `json:"position,omitempty"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Event types read by the fight clusterer.
const (
	EventItemPurchased = "ITEM_PURCHASED"
	EventItemDestroyed = "ITEM_DESTROYED"
	EventItemSold      = "ITEM_SOLD"
	EventItemUndo      = "ITEM_UNDO"
	EventChampionKill  = "CHAMPION_KILL"
)

type Event struct {
	Type                    string    `json:"type"`
	Timestamp               int64     `json:"timestamp"`
	ParticipantID           int       `json:"participantId"`
	ItemID                  int       `json:"itemId"`
	BeforeID                int       `json:"beforeId"`
	AfterID                 int       `json:"afterId"`
	KillerID                int       `json:"killerId"`
	VictimID                int       `json:"victimId"`
	AssistingParticipantIDs []int     `json:"assistingParticipantIds"`
	Position                *Position `json:"position,omitempty"`
}
