// Package model defines the data types used throughout the sb3pack CLI.
package model

import "encoding/json"

// ProjectJSON is the subset of a Scratch 3.0 project.json that sb3pack reads.
// Fields it does not model are left in the raw bytes and survive repackaging.
type ProjectJSON struct {
	Targets    []Target        `json:"targets"`
	Monitors   json.RawMessage `json:"monitors,omitempty"`
	Extensions []string        `json:"extensions,omitempty"`
	Meta       *Meta           `json:"meta,omitempty"`

	// Scratch 2.0 markers, only used to reject old projects.
	ObjName  string          `json:"objName,omitempty"`
	Children json.RawMessage `json:"children,omitempty"`
}

// Target is a sprite or the stage.
type Target struct {
	IsStage  bool      `json:"isStage"`
	Name     string    `json:"name"`
	Costumes []Costume `json:"costumes"`
	Sounds   []Sound   `json:"sounds"`
}

// Costume references an image asset.
type Costume struct {
	Name       string `json:"name"`
	AssetID    string `json:"assetId"`
	MD5Ext     string `json:"md5ext,omitempty"`
	DataFormat string `json:"dataFormat"`
}

// Sound references an audio asset.
type Sound struct {
	Name       string `json:"name"`
	AssetID    string `json:"assetId"`
	MD5Ext     string `json:"md5ext,omitempty"`
	DataFormat string `json:"dataFormat"`
}

// Meta is the project.json metadata block.
type Meta struct {
	Semver string `json:"semver"`
	VM     string `json:"vm,omitempty"`
	Agent  string `json:"agent,omitempty"`
}

// AssetName returns the archive file name of a costume.
func (c Costume) AssetName() string {
	return assetName(c.MD5Ext, c.AssetID, c.DataFormat)
}

// AssetName returns the archive file name of a sound.
func (s Sound) AssetName() string {
	return assetName(s.MD5Ext, s.AssetID, s.DataFormat)
}

func assetName(md5ext, id, format string) string {
	if md5ext != "" {
		return md5ext
	}
	if id == "" {
		return ""
	}
	return id + "." + format
}

// Summary is a printable overview of a loaded project.
type Summary struct {
	Title      string   `json:"title"`
	Format     string   `json:"format"`
	Semver     string   `json:"semver,omitempty"`
	VM         string   `json:"vm,omitempty"`
	Agent      string   `json:"agent,omitempty"`
	Targets    []string `json:"targets"`
	Sprites    int      `json:"sprites"`
	Costumes   int      `json:"costumes"`
	Sounds     int      `json:"sounds"`
	Extensions []string `json:"extensions"`
	Assets     int      `json:"assets"`
	AssetBytes int64    `json:"asset_bytes"`
	Missing    []string `json:"missing_assets,omitempty"`
}

// AssetInfo describes a single asset reference.
type AssetInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Present bool   `json:"present"`
}

// Job statuses reported by a remote packaging service.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// Job represents a remote packaging job.
type Job struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	EventsURL   string `json:"events_url,omitempty"`
	ArtifactURL string `json:"artifact_url,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// IsFinished reports whether the job reached a terminal status.
func (j *Job) IsFinished() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// JobRequest is the body sent to create a remote packaging job.
type JobRequest struct {
	Project  string          `json:"project"` // base64
	Options  json.RawMessage `json:"options"`
	Filename string          `json:"filename,omitempty"`
}

// Job event types.
const (
	EventProgress = "progress"
	EventDone     = "done"
	EventError    = "error"
)

// JobEvent is a progress message streamed by the remote service.
type JobEvent struct {
	Type    string `json:"type"`
	JobID   string `json:"job_id,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Loaded  int64  `json:"loaded,omitempty"`
	Total   int64  `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// User represents the account behind an API key.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
