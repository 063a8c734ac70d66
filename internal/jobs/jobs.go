// Package jobs loads the job catalog the interview context is built from.
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
)

// Job is one opening in the catalog.
type Job struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	Type         string   `json:"type"`
	Salary       string   `json:"salary"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
}

// Catalog is an in-memory job listing keyed by ID.
type Catalog struct {
	jobs []Job
	byID map[string]Job
	log  zerolog.Logger
}

// Load reads the catalog from a JSON file containing an array of jobs.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jobs: read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw JSON.
func Parse(data []byte) (*Catalog, error) {
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("jobs: parse catalog: %w", err)
	}
	byID := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		if j.ID == "" {
			return nil, fmt.Errorf("jobs: catalog entry %q has no id", j.Title)
		}
		if _, dup := byID[j.ID]; dup {
			return nil, fmt.Errorf("jobs: duplicate job id %q", j.ID)
		}
		byID[j.ID] = j
	}
	c := &Catalog{jobs: jobs, byID: byID, log: logging.WithComponent("jobs")}
	c.log.Info().Int("jobs", len(jobs)).Msg("catalog loaded")
	return c, nil
}

// All returns the catalog entries in file order.
func (c *Catalog) All() []Job {
	out := make([]Job, len(c.jobs))
	copy(out, c.jobs)
	return out
}

// Get looks a job up by ID.
func (c *Catalog) Get(id string) (Job, error) {
	j, ok := c.byID[id]
	if !ok {
		return Job{}, fmt.Errorf("jobs: unknown job id %q", id)
	}
	return j, nil
}

// JobDescription renders the job as the plain-text context block the
// interview backend expects.
func (c *Catalog) JobDescription(id string) (string, error) {
	j, err := c.Get(id)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", j.Title)
	fmt.Fprintf(&b, "Company: %s\n", j.Company)
	if j.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", j.Location)
	}
	if j.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", j.Type)
	}
	if j.Salary != "" {
		fmt.Fprintf(&b, "Salary: %s\n", j.Salary)
	}
	fmt.Fprintf(&b, "Description: %s\n", j.Description)
	if len(j.Requirements) > 0 {
		b.WriteString("Requirements:\n")
		for _, r := range j.Requirements {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String(), nil
}
