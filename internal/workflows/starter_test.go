package workflows_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/workflows"
)

type fakeRun struct {
	client.WorkflowRun
	runID string
}

func (r fakeRun) GetRunID() string { return r.runID }

type fakeStarter struct {
	err   error
	calls []client.StartWorkflowOptions
	args  []interface{}
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, _ interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.calls = append(f.calls, opts)
	f.args = append(f.args, args...)
	if f.err != nil {
		return nil, f.err
	}
	return fakeRun{runID: "run-1"}, nil
}

func TestStarter_StartsWorkflow(t *testing.T) {
	fs := &fakeStarter{}
	s := &workflows.Starter{Client: fs, TaskQueue: "q"}

	err := s.HandleUnclassified(context.Background(), &domain.Issue{ID: "abc", ImageKey: "2024/01/02/x.jpg"})
	require.NoError(t, err)

	require.Len(t, fs.calls, 1)
	assert.Equal(t, "reclassify-abc", fs.calls[0].ID)
	assert.Equal(t, "q", fs.calls[0].TaskQueue)
	require.Len(t, fs.args, 1)
	assert.Equal(t, workflows.ReclassifyInput{IssueID: "abc", ImageKey: "2024/01/02/x.jpg"}, fs.args[0])
}

func TestStarter_Skips(t *testing.T) {
	label := "pothole"
	cases := map[string]*domain.Issue{
		"no image":   {ID: "a"},
		"classified": {ID: "b", ImageKey: "k", AnalysisRecord: domain.AnalysisRecord{Classification: &label}},
	}
	for name, issue := range cases {
		t.Run(name, func(t *testing.T) {
			fs := &fakeStarter{}
			s := &workflows.Starter{Client: fs, TaskQueue: "q"}
			require.NoError(t, s.HandleUnclassified(context.Background(), issue))
			assert.Empty(t, fs.calls)
		})
	}
}

func TestStarter_AlreadyStartedIsSuccess(t *testing.T) {
	fs := &fakeStarter{err: &serviceerror.WorkflowExecutionAlreadyStarted{Message: "exists"}}
	s := &workflows.Starter{Client: fs, TaskQueue: "q"}

	assert.NoError(t, s.HandleUnclassified(context.Background(), &domain.Issue{ID: "abc", ImageKey: "k"}))
}

func TestStarter_PropagatesOtherErrors(t *testing.T) {
	fs := &fakeStarter{err: errors.New("frontend unavailable")}
	s := &workflows.Starter{Client: fs, TaskQueue: "q"}

	err := s.HandleUnclassified(context.Background(), &domain.Issue{ID: "abc", ImageKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abc")
}
