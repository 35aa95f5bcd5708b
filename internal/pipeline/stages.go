package pipeline

import "time"

// Status of a stage as reported in Progress.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Stage ids. The numbering is fixed; observers rely on it.
const (
	StageScript      = 1
	StageImages      = 2
	StageVoiceover   = 3
	StageTransitions = 4
	StageSubtitles   = 5
	StageMusic       = 6
	StageRender      = 7
)

// Stage describes one phase of a run and its share of the progress bar.
type Stage struct {
	ID     int
	Name   string
	Active string // message while in progress
	Done   string // message on completion
	Weight float64
	// Delay is the declared duration of a simulated stage. Substantive stages leave it zero.
	Delay time.Duration
}

// Simulated reports whether the stage has no collaborator call of its own.
func (s Stage) Simulated() bool {
	return s.ID >= StageTransitions
}

// Catalog lists every stage in run order. Weights add up to 100.
var Catalog = []Stage{
	{ID: StageScript, Name: "script", Active: "Crafting a compelling narrative...", Done: "Script generated successfully!", Weight: 15},
	{ID: StageImages, Name: "images", Active: "Visualizing scenes...", Done: "All images generated!", Weight: 40},
	{ID: StageVoiceover, Name: "voiceover", Active: "Synthesizing voiceover...", Done: "Voiceover generated!", Weight: 15},
	{ID: StageTransitions, Name: "transitions", Active: "Designing Transitions...", Done: "Transitions designed!", Weight: 7, Delay: 500 * time.Millisecond},
	{ID: StageSubtitles, Name: "subtitles", Active: "Adding Subtitles...", Done: "Subtitles prepared!", Weight: 8, Delay: 500 * time.Millisecond},
	{ID: StageMusic, Name: "music", Active: "Mixing Background Music...", Done: "Music mixed!", Weight: 7, Delay: 500 * time.Millisecond},
	{ID: StageRender, Name: "render", Active: "Rendering Final Video...", Done: "Final render complete!", Weight: 8, Delay: 800 * time.Millisecond},
}

// StageByID looks a stage up in the catalog.
func StageByID(id int) (Stage, bool) {
	for _, s := range Catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// startPercent is the cumulative weight of every stage before id.
func startPercent(id int) float64 {
	total := 0.0
	for _, s := range Catalog {
		if s.ID == id {
			break
		}
		total += s.Weight
	}
	return total
}

// Progress is one update emitted during a run.
type Progress struct {
	Stage   int     `json:"step"`
	Status  Status  `json:"status"`
	Message string  `json:"message"`
	Percent float64 `json:"progress"`
}
