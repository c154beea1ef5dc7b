package tracing

// Span attribute keys
const (
	AttrKeyErrorCode  = "h5json.error.code"
	AttrKeyObjectID   = "h5json.object.id"
	AttrKeyObjectKind = "h5json.object.kind"
	AttrKeyLinkName   = "h5json.link.name"
	AttrKeyFilename   = "h5json.store.filename"
	AttrKeyQuery      = "h5json.query"
	AttrKeyMatches    = "h5json.query.matches"
	AttrKeyCommand    = "h5json.command"
	AttrKeyArgs       = "h5json.command.args"
)

// Resource attribute keys
const (
	AttrKeyAPIVersion    = "h5json.api_version"
	AttrKeyEngine        = "h5json.engine.name"
	AttrKeyEngineVersion = "h5json.engine.version"
)
