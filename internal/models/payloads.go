package models

// These structs define the JSON payloads exchanged with the indexing functions
// and the downstream analysis workflow.

// IndexFolderRequest is the input for the folder indexing function.
type IndexFolderRequest struct {
	FolderID   string `json:"folderId"`
	OutputPath string `json:"outputPath,omitempty"`
}

// IndexFolderResponse is the output of the folder indexing function.
type IndexFolderResponse struct {
	Status string     `json:"status"`
	Index  string     `json:"index"`
	Report *RunReport `json:"report"`
}

// PubSubMessage is the message carried by a Pub/Sub CloudEvent. Data holds a
// JSON-encoded IndexFolderRequest; encoding/json decodes the base64 wire form.
type PubSubMessage struct {
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
	MessageID  string            `json:"messageId"`
}

// MessagePublishedData is the CloudEvent payload for google.cloud.pubsub.topic.v1.messagePublished.
type MessagePublishedData struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

// AnalysisHandoff is the argument passed to the analysis workflow once an index is ready.
type AnalysisHandoff struct {
	RunID         string `json:"runId"`
	FolderID      string `json:"folderId"`
	IndexPath     string `json:"indexPath"`
	IndexGCSUri   string `json:"indexGcsUri,omitempty"`
	DocumentCount int    `json:"documentCount"`
}
