package scape

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"opevolve/internal/vecmath"
)

// Pentagon5 is a convex five-city instance whose sides are all shorter than
// its diagonals.
var Pentagon5 = []vecmath.Vec2{
	{X: 0, Y: 0},
	{X: 2, Y: 0},
	{X: 3, Y: 2},
	{X: 1, Y: 3.5},
	{X: -1, Y: 2},
}

// LoadTourInstance parses either
//
//	{"name": "...", "cities": [{"x": 0, "y": 0}, [1, 2], ...]}
//
// or
//
//	{"name": "...", "distances": [[0, 1], [1, 0]]}
func LoadTourInstance(data []byte) (*TourScape, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("tour instance is not valid json")
	}
	doc := gjson.ParseBytes(data)
	name := doc.Get("name").String()

	if distances := doc.Get("distances"); distances.Exists() {
		if !distances.IsArray() {
			return nil, fmt.Errorf("%w: distances must be an array of rows", ErrMalformedInstance)
		}
		var rows [][]float64
		var parseErr error
		distances.ForEach(func(i, row gjson.Result) bool {
			if !row.IsArray() {
				parseErr = fmt.Errorf("%w: distance row %d is not an array", ErrMalformedInstance, i.Int())
				return false
			}
			var values []float64
			row.ForEach(func(j, v gjson.Result) bool {
				if v.Type != gjson.Number {
					parseErr = fmt.Errorf("%w: distance (%d,%d) is not a number: %s", ErrMalformedInstance, i.Int(), j.Int(), v.Raw)
					return false
				}
				values = append(values, v.Float())
				return true
			})
			rows = append(rows, values)
			return parseErr == nil
		})
		if parseErr != nil {
			return nil, parseErr
		}
		dist, err := vecmath.SymFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInstance, err)
		}
		return NewTourScape(name, dist)
	}

	cities := doc.Get("cities")
	if cities.Exists() && !cities.IsArray() {
		return nil, fmt.Errorf("%w: cities must be an array", ErrMalformedInstance)
	}
	var points []vecmath.Vec2
	var parseErr error
	cities.ForEach(func(key, v gjson.Result) bool {
		var x, y gjson.Result
		switch {
		case v.IsArray():
			xy := v.Array()
			if len(xy) != 2 {
				parseErr = fmt.Errorf("%w: city %d: want [x, y], got %d values", ErrMalformedInstance, key.Int(), len(xy))
				return false
			}
			x, y = xy[0], xy[1]
		case v.IsObject():
			x, y = v.Get("x"), v.Get("y")
		default:
			parseErr = fmt.Errorf("%w: city %d: unsupported value %s", ErrMalformedInstance, key.Int(), v.Raw)
			return false
		}
		if x.Type != gjson.Number || y.Type != gjson.Number {
			parseErr = fmt.Errorf("%w: city %d: coordinates must be numbers, got %s", ErrMalformedInstance, key.Int(), v.Raw)
			return false
		}
		points = append(points, vecmath.Vec2{X: x.Float(), Y: y.Float()})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return NewEuclideanTour(name, points)
}

// LoadChainInstance parses {"name": "...", "sequence": "HPHH..."}.
func LoadChainInstance(data []byte) (*ChainScape, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("chain instance is not valid json")
	}
	doc := gjson.ParseBytes(data)
	sequence := doc.Get("sequence")
	if !sequence.Exists() {
		return nil, fmt.Errorf("chain instance requires a sequence")
	}
	return NewChainScape(doc.Get("name").String(), sequence.String())
}

// Builtin resolves a named instance:
//
//	pentagon5            five-city convex tour
//	random:<n>:<seed>    n uniformly placed cities in the unit square
//	hp:<sequence>        HP chain with the given residues
func Builtin(name string) (Environment, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "pentagon5":
		return NewEuclideanTour("pentagon5", Pentagon5)
	case strings.HasPrefix(name, "random:"):
		parts := strings.Split(name, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("random instance must be random:<n>:<seed>, got %q", name)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("random instance size: %w", err)
		}
		seed, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("random instance seed: %w", err)
		}
		return NewEuclideanTour(name, RandomCities(n, seed))
	case strings.HasPrefix(name, "hp:"):
		return NewChainScape(name, strings.TrimPrefix(name, "hp:"))
	default:
		return nil, fmt.Errorf("unknown builtin instance: %s", name)
	}
}

func RandomCities(n int, seed int64) []vecmath.Vec2 {
	if n < 0 {
		n = 0
	}
	rng := rand.New(rand.NewSource(seed))
	points := make([]vecmath.Vec2, n)
	for i := range points {
		points[i] = vecmath.Vec2{X: rng.Float64(), Y: rng.Float64()}
	}
	return points
}
