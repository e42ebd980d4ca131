package optimization

// Engine defines the interface for evolutionary search runs
type Engine[O any] interface {
	// Run executes the configured number of generations
	Run() (*Result[O], error)

	// History returns the per-generation statistics recorded so far
	History() []GenerationStats
}

// Solution is the outcome of a run. It is produced once, when the run ends.
type Solution[O any] struct {
	BestFitness     float64
	BestOrganism    O
	FinalPopulation *Population[O]
}

// GenerationStats summarizes the fitness distribution of one generation.
// Generation 0 is the population returned by the creator.
type GenerationStats struct {
	Generation int     `json:"generation"`
	Size       int     `json:"size"`
	Best       float64 `json:"best"`
	Worst      float64 `json:"worst"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
}

// Result contains the result of a run
type Result[O any] struct {
	Solution   *Solution[O]
	History    []GenerationStats
	Iterations int
}
