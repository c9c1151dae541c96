package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	recorder := NewRecorder(nil)
	cases := []Entry{
		{Entity: "role", EntityID: "1"},
		{Action: "role.created", EntityID: "1"},
		{Action: "role.created", Entity: "role"},
	}
	for _, entry := range cases {
		assert.Error(t, recorder.Record(context.Background(), entry))
	}
}

func TestRecordNilRecorder(t *testing.T) {
	var recorder *Recorder
	assert.Error(t, recorder.Record(context.Background(), Entry{Action: "x", Entity: "y", EntityID: "1"}))
}
