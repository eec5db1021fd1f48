package metrics

import "time"

// ResultLabel enumerates stage and build outcomes.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder receives observations from the build, watch and preview components.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(result ResultLabel)
	SetPagesRendered(n int)
	AddAssetVariants(kind string, n int)
	IncAssetFailures(n int)
	IncWatchEvent(kind string)
	IncRebuildTrigger()
	SetLiveReloadClients(n int)
	IncLiveReloadBroadcast()
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(ResultLabel)                {}
func (NoopRecorder) SetPagesRendered(int)                       {}
func (NoopRecorder) AddAssetVariants(string, int)               {}
func (NoopRecorder) IncAssetFailures(int)                       {}
func (NoopRecorder) IncWatchEvent(string)                       {}
func (NoopRecorder) IncRebuildTrigger()                         {}
func (NoopRecorder) SetLiveReloadClients(int)                   {}
func (NoopRecorder) IncLiveReloadBroadcast()                    {}
