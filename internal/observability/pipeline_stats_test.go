package observability

import (
	"sync"
	"testing"
)

func TestPipelineStats_Counters(t *testing.T) {
	s := NewPipelineStats()

	s.ArtifactExtracted()
	s.ArtifactArchived()
	s.RowsParsed(3)
	s.RowsDropped(1)
	s.MessagesEnqueued(3)
	s.MessageReceived()
	s.MessageAcked()
	s.RecordCommitted()
	s.RecordInvalid()
	s.RecordDeadLettered()
	s.EventPublished()
	s.PublishFailed()

	snap := s.SnapshotNow()
	if snap.ArtifactsExtracted != 1 || snap.ArtifactsArchived != 1 {
		t.Errorf("artifact counters: %+v", snap)
	}
	if snap.RowsParsed != 3 || snap.RowsDropped != 1 {
		t.Errorf("row counters: %+v", snap)
	}
	if snap.MessagesEnqueued != 3 || snap.MessagesReceived != 1 || snap.MessagesAcked != 1 {
		t.Errorf("message counters: %+v", snap)
	}
	if snap.RecordsCommitted != 1 || snap.RecordsInvalid != 1 || snap.RecordsDeadLetter != 1 {
		t.Errorf("record counters: %+v", snap)
	}
	if snap.EventsPublished != 1 || snap.PublishFailures != 1 {
		t.Errorf("event counters: %+v", snap)
	}
}

func TestPipelineStats_Concurrent(t *testing.T) {
	s := NewPipelineStats()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.RecordCommitted()
			}
		}()
	}
	wg.Wait()

	if got := s.SnapshotNow().RecordsCommitted; got != 8000 {
		t.Errorf("records committed = %d, want 8000", got)
	}
}
