package mission

import (
	"errors"
	"sort"
)

var ErrUnknownPlanet = errors.New("unknown planet")

// Planet is a mission stop on the map.
type Planet struct {
	Number int    `json:"number"`
	Name   string `json:"name"`

	// Prompt is spoken to the learner, in their cloned voice when one exists.
	Prompt string `json:"prompt"`

	// Reference is synthesized without a voice and used as the analysis truth.
	Reference string `json:"reference"`
}

var planets = map[int]Planet{
	1: {
		Number:    1,
		Name:      "Planet 1",
		Prompt:    "Repeat after me cadet!: Sally sells sea shells by the sea shore",
		Reference: "Sally sells sea shells by the sea shore. She sells sea shells surely. The shells she sells are surely sea shells. So if she sells shells on the seashore, I'm sure she sells seashore shells.",
	},
	3: {
		Number:    3,
		Name:      "Planet 3",
		Prompt:    "Repeat after me cadet!: Six slippery snails slid slowly seaward",
		Reference: "Six slippery snails slid slowly seaward. Seven sleek seals sang songs as the snails slid by.",
	},
	5: {
		Number:    5,
		Name:      "Planet 5",
		Prompt:    "Repeat after me cadet!: Sam's sister sews silver stars",
		Reference: "Sam's sister sews silver stars on Saturday. She sews seven stars for the spaceship sails.",
	},
}

// LookupPlanet returns the mission for number.
func LookupPlanet(number int) (Planet, error) {
	p, ok := planets[number]
	if !ok {
		return Planet{}, ErrUnknownPlanet
	}
	return p, nil
}

// Planets lists the missions in map order.
func Planets() []Planet {
	out := make([]Planet, 0, len(planets))
	for _, p := range planets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
