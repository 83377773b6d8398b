package events

// Lifecycle notifications shared between map components.
const (
	MarkerReady            = "markerReady"
	MarkerDismissChange    = "markerDismissChange"
	GroupDismissChange     = "groupDismissChange"
	BackgroundChange       = "backgroundChange"
	ChunkStreamingDone     = "chunkStreamingDone"
	DisplayReady           = "leafletLoaded"
	LegendManager          = "legendManager"
	MarkerVisibilityUpdate = "markerVisibilityUpdate"
	LinkedEvent            = "linkedEvent"
	SendLinkedEvent        = "sendLinkedEvent"
	StreamingFailed        = "streamingFailed"
	MarkerFocus            = "markerFocus"
)

// SearchCommit is fired by a search index with the entries it just committed.
const SearchCommit = "commit"
