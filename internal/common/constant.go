package common

// AuthHeaderName is the HTTP header carrying the bearer access token on
// outbound requests to the metadata API.
const AuthHeaderName = "Authorization"

// FileClass is the fixed class segment of logical object-storage paths
// (<owner>/<set>/<class>/<localId><ext>). Only binary file payloads are
// stored today; the segment keeps room for other payload classes.
const FileClass = "files"
