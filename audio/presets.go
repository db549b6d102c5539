package audio

import (
	"sort"
	"strings"
)

// Preset is a fixed stream that can be queued by name.
type Preset struct {
	Name string
	URL  string
	Live bool // 24/7 stream
}

const DefaultPreset = "lofigirl"

var presets = map[string]Preset{
	"lofigirl":  {Name: "lofigirl", URL: "https://www.youtube.com/watch?v=jfKfPfyJRdk", Live: true},
	"undertale": {Name: "undertale", URL: "https://www.youtube.com/watch?v=A7vMrjsBMTI"},
	"zelda":     {Name: "zelda", URL: "https://www.youtube.com/watch?v=-z3RRwk2rdU"},
	"animeops":  {Name: "animeops", URL: "https://www.youtube.com/watch?v=GNWLILeztaI"},
	"metal":     {Name: "metal", URL: "https://www.youtube.com/watch?v=83PnFc6eh-4"},
	"djent":     {Name: "djent", URL: "https://www.youtube.com/watch?v=1XFtipo7v0Y"},
}

// LookupPreset finds a preset by name. An empty name is the default preset.
func LookupPreset(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultPreset
	}
	p, ok := presets[name]
	return p, ok
}

// Presets returns every preset sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
