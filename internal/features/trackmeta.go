package features

import "strings"

// 2026 calendar track metadata. Boost effectiveness (0.0 - 1.0) reflects
// how much a circuit benefits from the boost/overtake mechanics: longer
// straights score higher.

var trackBoostEffectiveness = map[string]float64{
	"monza":       0.95,
	"baku":        0.92,
	"jeddah":      0.90,
	"spa":         0.88,
	"spielberg":   0.85,
	"silverstone": 0.78,
	"suzuka":      0.75,
	"melbourne":   0.72,
	"montreal":    0.70,
	"bahrain":     0.68,
	"cota":        0.67,
	"barcelona":   0.65,
	"qatar":       0.62,
	"shanghai":    0.60,
	"abu_dhabi":   0.58,
	"imola":       0.55,
	"las_vegas":   0.52,
	"mexico":      0.50,
	"sao_paulo":   0.48,
	"miami":       0.45,
	"zandvoort":   0.42,
	"hungary":     0.35,
	"singapore":   0.30,
	"monaco":      0.25,
}

var trackNames = map[string]string{
	"monza":       "Italian Grand Prix",
	"baku":        "Azerbaijan Grand Prix",
	"jeddah":      "Saudi Arabian Grand Prix",
	"spa":         "Belgian Grand Prix",
	"spielberg":   "Austrian Grand Prix",
	"silverstone": "British Grand Prix",
	"suzuka":      "Japanese Grand Prix",
	"melbourne":   "Australian Grand Prix",
	"montreal":    "Canadian Grand Prix",
	"bahrain":     "Bahrain Grand Prix",
	"cota":        "United States Grand Prix",
	"barcelona":   "Spanish Grand Prix",
	"shanghai":    "Chinese Grand Prix",
	"imola":       "Emilia Romagna Grand Prix",
	"las_vegas":   "Las Vegas Grand Prix",
	"mexico":      "Mexico City Grand Prix",
	"sao_paulo":   "São Paulo Grand Prix",
	"miami":       "Miami Grand Prix",
	"zandvoort":   "Dutch Grand Prix",
	"hungary":     "Hungarian Grand Prix",
	"singapore":   "Singapore Grand Prix",
	"monaco":      "Monaco Grand Prix",
	"qatar":       "Qatar Grand Prix",
	"abu_dhabi":   "Abu Dhabi Grand Prix",
}

var trackTypes = map[string]string{
	"monza":       "high-speed",
	"baku":        "street",
	"jeddah":      "street",
	"spa":         "high-speed",
	"spielberg":   "high-speed",
	"silverstone": "mixed",
	"suzuka":      "mixed",
	"melbourne":   "street",
	"montreal":    "semi-street",
	"bahrain":     "mixed",
	"cota":        "mixed",
	"barcelona":   "balanced",
	"shanghai":    "mixed",
	"imola":       "high-downforce",
	"las_vegas":   "street",
	"mexico":      "high-altitude",
	"sao_paulo":   "mixed",
	"miami":       "street",
	"zandvoort":   "high-downforce",
	"hungary":     "high-downforce",
	"singapore":   "street",
	"monaco":      "street",
	"qatar":       "mixed",
	"abu_dhabi":   "mixed",
}

var eventTrackKeys = func() map[string]string {
	out := make(map[string]string, len(trackNames))
	for key, name := range trackNames {
		out[name] = key
	}
	return out
}()

// BoostEffectiveness returns the boost rating for a track key, 0.5 when
// unknown.
func BoostEffectiveness(trackKey string) float64 {
	if v, ok := trackBoostEffectiveness[strings.ToLower(trackKey)]; ok {
		return v
	}
	return 0.5
}

// TrackName returns the official event name for a track key.
func TrackName(trackKey string) string {
	if name, ok := trackNames[strings.ToLower(trackKey)]; ok {
		return name
	}
	return trackKey
}

// TrackType returns the track classification, "mixed" when unknown.
func TrackType(trackKey string) string {
	if t, ok := trackTypes[strings.ToLower(trackKey)]; ok {
		return t
	}
	return "mixed"
}

// EventTrackKey maps an official event name back to its track key.
// Unknown events fall back to a lowercased form of the name.
func EventTrackKey(eventName string) string {
	if key, ok := eventTrackKeys[eventName]; ok {
		return key
	}
	return strings.ToLower(strings.ReplaceAll(eventName, " ", "_"))
}
