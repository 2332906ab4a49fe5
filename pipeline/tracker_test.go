package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lexicore/model"
	"lexicore/pipeline"
)

func testStages() map[model.PipelineStage]int {
	return map[model.PipelineStage]int{
		model.StageStart:             5,
		model.StageSearchStart:       10,
		model.StageProviderFetchStart: 25,
		model.StageComplete:          100,
	}
}

func TestUpdateStageLooksUpCanonicalProgress(t *testing.T) {
	tr := pipeline.NewStateTracker("search", testStages())
	sub, unsubscribe := tr.Subscribe()
	defer unsubscribe()

	tr.UpdateStage(model.StageSearchStart, "", nil)
	state := <-sub
	require.Equal(t, model.StageSearchStart, state.Stage)
	require.Equal(t, 10, state.Progress)
	require.Equal(t, "SEARCH_START", state.Message)
}

func TestMultipleSubscribersEachReceiveAllEvents(t *testing.T) {
	tr := pipeline.NewStateTracker("search", testStages())
	sub1, unsub1 := tr.Subscribe()
	sub2, unsub2 := tr.Subscribe()
	defer unsub1()
	defer unsub2()

	tr.UpdateStage(model.StageStart, "", nil)

	s1 := <-sub1
	s2 := <-sub2
	require.Equal(t, model.StageStart, s1.Stage)
	require.Equal(t, model.StageStart, s2.Stage)
}

func TestUpdateCompleteSetsFullProgress(t *testing.T) {
	tr := pipeline.NewStateTracker("search", testStages())
	sub, unsubscribe := tr.Subscribe()
	defer unsubscribe()

	tr.UpdateComplete("done")
	state := <-sub
	require.True(t, state.IsComplete)
	require.Equal(t, 100, state.Progress)
}

func TestUpdateErrorPreservesProgressReachedSoFar(t *testing.T) {
	tr := pipeline.NewStateTracker("search", testStages())
	sub, unsubscribe := tr.Subscribe()
	defer unsubscribe()

	tr.UpdateStage(model.StageSearchStart, "", nil)
	<-sub
	tr.UpdateError("boom")
	state := <-sub
	require.Equal(t, 10, state.Progress)
	require.Equal(t, "boom", state.Error)
	require.True(t, state.IsComplete)
}

func TestResetClearsStateAndDrainsQueue(t *testing.T) {
	tr := pipeline.NewStateTracker("search", testStages())
	sub, unsubscribe := tr.Subscribe()
	defer unsubscribe()

	tr.UpdateStage(model.StageStart, "", nil)
	tr.Reset()

	require.Equal(t, 0, len(sub), "reset should drain pending events")
	require.Equal(t, model.PipelineState{}, tr.Current())
}
