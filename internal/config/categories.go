package config

// CategoryWeights orders command categories in listings; lower comes first.
var CategoryWeights = map[string]int{
	"🎵 Music":        10,
	"⚙️ Settings":    50,
	"🛠️ Maintenance": 60,
}

// CategoryWeight returns the listing weight of a category. Unknown
// categories sort last.
func CategoryWeight(category string) int {
	if w, ok := CategoryWeights[category]; ok {
		return w
	}
	return 100
}
