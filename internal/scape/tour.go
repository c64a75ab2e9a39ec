package scape

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"opevolve/internal/vecmath"
)

// Tour is a closed city sequence; the edge back to the first city is implied.
type Tour []int

func (t Tour) Len() int {
	return len(t)
}

func (t Tour) Clone() Solution {
	return append(Tour(nil), t...)
}

// Equivalent reports whether t and other describe the same cycle, ignoring
// starting city and direction.
func (t Tour) Equivalent(other Tour) bool {
	n := len(t)
	if n != len(other) {
		return false
	}
	if n == 0 {
		return true
	}
	start := -1
	for i, city := range other {
		if city == t[0] {
			start = i
			break
		}
	}
	if start < 0 {
		return false
	}
	forward, backward := true, true
	for k := 0; k < n; k++ {
		if t[k] != other[(start+k)%n] {
			forward = false
		}
		if t[k] != other[(start-k+n)%n] {
			backward = false
		}
	}
	return forward || backward
}

// Edge is an undirected tour edge with I < J.
type Edge struct {
	I, J int
}

// TourScape is a symmetric travelling-salesman instance whose mutable state
// is a partial edge set with every city of degree at most two.
type TourScape struct {
	name  string
	dist  *mat.SymDense
	n     int
	links []int // links[2*i], links[2*i+1]: neighbours of city i or -1
	edges int
}

func NewTourScape(name string, dist *mat.SymDense) (*TourScape, error) {
	if dist == nil {
		return nil, ErrTooFewCities
	}
	n := dist.SymmetricDim()
	if n < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewCities, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := dist.At(i, j)
			if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
				return nil, fmt.Errorf("invalid distance %v between cities %d and %d", d, i, j)
			}
		}
	}
	if name == "" {
		name = fmt.Sprintf("tsp%d", n)
	}
	s := &TourScape{
		name:  name,
		dist:  mat.NewSymDense(n, nil),
		n:     n,
		links: make([]int, 2*n),
	}
	s.dist.CopySym(dist)
	s.Reset()
	return s, nil
}

func NewEuclideanTour(name string, points []vecmath.Vec2) (*TourScape, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewCities, len(points))
	}
	return NewTourScape(name, vecmath.DistanceMatrix(points))
}

func (s *TourScape) Name() string {
	return s.name
}

func (s *TourScape) Cities() int {
	return s.n
}

func (s *TourScape) Distance(i, j int) float64 {
	return s.dist.At(i, j)
}

func (s *TourScape) Degree(i int) int {
	d := 0
	if s.links[2*i] >= 0 {
		d++
	}
	if s.links[2*i+1] >= 0 {
		d++
	}
	return d
}

func (s *TourScape) HasEdge(i, j int) bool {
	if i < 0 || j < 0 || i >= s.n || j >= s.n {
		return false
	}
	return s.links[2*i] == j || s.links[2*i+1] == j
}

// EdgeCount is the number of edges currently placed.
func (s *TourScape) EdgeCount() int {
	return s.edges
}

// Edges lists the placed edges ordered by (I, J).
func (s *TourScape) Edges() []Edge {
	out := make([]Edge, 0, s.edges)
	for i := 0; i < s.n; i++ {
		for _, j := range s.links[2*i : 2*i+2] {
			if j > i {
				out = append(out, Edge{I: i, J: j})
			}
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].I == out[b].I {
			return out[a].J < out[b].J
		}
		return out[a].I < out[b].I
	})
	return out
}

// CanConnect reports whether edge (i, j) may be added without exceeding
// degree two or closing a cycle that misses some city.
func (s *TourScape) CanConnect(i, j int) bool {
	if i == j || i < 0 || j < 0 || i >= s.n || j >= s.n {
		return false
	}
	if s.HasEdge(i, j) || s.Degree(i) >= 2 || s.Degree(j) >= 2 {
		return false
	}
	if s.pathEnd(i) == j {
		return s.edges == s.n-1
	}
	return true
}

func (s *TourScape) Connect(i, j int) bool {
	if !s.CanConnect(i, j) {
		return false
	}
	s.attach(i, j)
	s.attach(j, i)
	s.edges++
	return true
}

func (s *TourScape) Disconnect(i, j int) bool {
	if !s.HasEdge(i, j) {
		return false
	}
	s.detach(i, j)
	s.detach(j, i)
	s.edges--
	return true
}

func (s *TourScape) Evaluate() float64 {
	if !s.complete() {
		return Incomplete
	}
	total := 0.0
	for _, e := range s.Edges() {
		total += s.dist.At(e.I, e.J)
	}
	return total
}

func (s *TourScape) CurrentSolution() (Solution, bool) {
	if !s.complete() {
		return nil, false
	}
	tour := make(Tour, 0, s.n)
	prev, cur := -1, 0
	for len(tour) < s.n {
		tour = append(tour, cur)
		a, b := s.links[2*cur], s.links[2*cur+1]
		next := a
		if prev < 0 {
			if b < a {
				next = b
			}
		} else if a == prev {
			next = b
		}
		prev, cur = cur, next
	}
	return tour, true
}

func (s *TourScape) Reset() {
	for i := range s.links {
		s.links[i] = -1
	}
	s.edges = 0
}

// Commit accepts any permutation of the cities as an authoritative tour.
func (s *TourScape) Commit(sol Solution) error {
	tour, ok := sol.(Tour)
	if !ok {
		return fmt.Errorf("%w: %T is not a tour", ErrInvalidSolution, sol)
	}
	if len(tour) != s.n {
		return fmt.Errorf("%w: tour visits %d cities, want %d", ErrInvalidSolution, len(tour), s.n)
	}
	seen := make([]bool, s.n)
	for _, city := range tour {
		if city < 0 || city >= s.n || seen[city] {
			return fmt.Errorf("%w: tour is not a permutation", ErrInvalidSolution)
		}
		seen[city] = true
	}

	s.Reset()
	for k, city := range tour {
		next := tour[(k+1)%s.n]
		s.attach(city, next)
		s.attach(next, city)
	}
	s.edges = s.n
	return nil
}

func (s *TourScape) attach(i, j int) {
	if s.links[2*i] < 0 {
		s.links[2*i] = j
		return
	}
	s.links[2*i+1] = j
}

func (s *TourScape) detach(i, j int) {
	if s.links[2*i] == j {
		s.links[2*i] = s.links[2*i+1]
	}
	s.links[2*i+1] = -1
}

// pathEnd follows the path containing i (which must have degree < 2) and
// returns the city at its other end.
func (s *TourScape) pathEnd(i int) int {
	prev, cur := -1, i
	for steps := 0; steps < s.n; steps++ {
		next := -1
		for _, nb := range s.links[2*cur : 2*cur+2] {
			if nb >= 0 && nb != prev {
				next = nb
				break
			}
		}
		if next < 0 {
			return cur
		}
		prev, cur = cur, next
	}
	return cur
}

func (s *TourScape) complete() bool {
	if s.edges != s.n {
		return false
	}
	g := simple.NewUndirectedGraph()
	for i := 0; i < s.n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range s.Edges() {
		g.SetEdge(g.NewEdge(simple.Node(e.I), simple.Node(e.J)))
	}
	return len(topo.ConnectedComponents(g)) == 1
}
