// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package platformtest

import (
	"net/http"
	"sync"

	"github.com/diffeo/go-visionclient/restdata"
)

// JobScript answers job status queries from a per-job sequence of
// states.  Each query of a job consumes one state; the last state
// repeats forever.
type JobScript struct {
	lock     sync.Mutex
	states   map[string][]string
	metadata map[string]map[string]interface{}
	polls    map[string]int
}

// NewJobScript creates an empty script.
func NewJobScript() *JobScript {
	return &JobScript{
		states:   make(map[string][]string),
		metadata: make(map[string]map[string]interface{}),
		polls:    make(map[string]int),
	}
}

// Script sets the states a job will report.
func (s *JobScript) Script(jobID string, states ...string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.states[jobID] = states
}

// SetMetadata sets the metadata a job reports with every state.
func (s *JobScript) SetMetadata(jobID string, metadata map[string]interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.metadata[jobID] = metadata
}

// Polls returns the number of times a job was queried.
func (s *JobScript) Polls(jobID string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.polls[jobID]
}

// Handle answers call if it is a job status query; ok is false
// otherwise.  Unscripted jobs get a 404.
func (s *JobScript) Handle(call Call) (resp Response, ok bool) {
	if call.Method != http.MethodGet || call.Template != restdata.JobURL {
		return Response{}, false
	}
	jobID, _ := call.Vars["job_id"].(string)

	s.lock.Lock()
	defer s.lock.Unlock()
	states, present := s.states[jobID]
	if !present || len(states) == 0 {
		return Response{Status: http.StatusNotFound}, true
	}
	n := s.polls[jobID]
	s.polls[jobID] = n + 1
	if n >= len(states) {
		n = len(states) - 1
	}

	status := restdata.JobStatus{
		ID:       jobID,
		State:    states[n],
		Steps:    []restdata.JobStep{{StepName: "Step " + states[n], Progress: float64(n * 10)}},
		Metadata: s.metadata[jobID],
	}
	body, err := restdata.EncodeBytes(status)
	if err != nil {
		panic(err)
	}
	return Response{Body: string(body)}, true
}
