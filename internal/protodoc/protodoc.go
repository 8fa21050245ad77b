// Package protodoc names the wire contracts a deployment's ingest and
// query listeners must speak, without implementing any of them. No
// parser, server, or client lives here: every exported value is a
// documented constant or a struct shape describing what a future
// line-protocol/Influx/HTTP-JSON frontend would decode into before
// calling into query.Engine or tsdb.Tsdb. Keeping these contracts named
// (even unimplemented) pins the public API shapes those frontends would
// call against, so adding one later doesn't force a breaking change to
// query or tsdb.
package protodoc

// ExitCode is the process exit status a command-line entry point should
// return in the corresponding situation.
type ExitCode int

const (
	ExitOK                  ExitCode = 0
	ExitBadConfig           ExitCode = 1
	ExitBadTCPPort          ExitCode = 2
	ExitBadUDPPort          ExitCode = 3
	ExitInitializationFailed ExitCode = 9
)

// LinePut documents the "put" line-protocol ingest record:
//
//	put <metric> <timestamp> <value> [<key>=<value>]*\n
//
// The leading "put " token is mandatory and is not optional whitespace;
// a frontend speaking this protocol must reject a line missing it rather
// than guess at the verb.
type LinePut struct {
	Metric    string
	Timestamp int64
	Value     float64
	Tags      map[string]string
}

// LineCheckpoint documents the "cp" cluster-checkpoint record:
//
//	cp <leader>:<channel>:<value>\n
type LineCheckpoint struct {
	Leader  string
	Channel string
	Value   string
}

// LineCommand names the inline-response verbs a line-protocol listener
// answers without touching storage: "version", "stats", "help".
type LineCommand string

const (
	LineCommandVersion LineCommand = "version"
	LineCommandStats   LineCommand = "stats"
	LineCommandHelp    LineCommand = "help"
)

// InfluxPoint documents the Influx-style ingest record:
//
//	<measurement>[,k=v…] <field>=<num>[,<field>=<num>…] [ts]\n
type InfluxPoint struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Timestamp   int64 // 0 means "server assigns current time"
}

// InfluxEscape maps a raw byte in a tag key, tag value, or measurement
// name to the two-character backslash escape a line-protocol encoder
// must emit for it. Any byte not present here (including ASCII letters,
// digits, and the field-separator '=' within a field value) is copied
// through unescaped.
var InfluxEscape = map[byte]byte{
	',': 'C',
	'=': 'E',
	' ': 'S',
}

// InfluxEscapeDefault is the escape character emitted for a special byte
// with no entry in InfluxEscape.
const InfluxEscapeDefault = '_'

// HTTPPutRequest documents one element of a POST /api/put body, which may
// be sent as a single object or a JSON array of these.
type HTTPPutRequest struct {
	Metric    string            `json:"metric"`
	Timestamp int64             `json:"timestamp"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags"`
}

// HTTPQueryRequest documents the POST /api/query body.
type HTTPQueryRequest struct {
	Start         int64            `json:"start"`
	End           int64            `json:"end"`
	MsResolution  bool             `json:"msResolution"`
	Queries       []HTTPSubQuery   `json:"queries"`
}

// HTTPSubQuery documents one entry of HTTPQueryRequest.Queries. Tags maps
// a tag key to either an exact value, "*" (wildcard), a present-key
// marker (empty string as the map value is not distinguishable from a
// real empty value over JSON, so a present-key selector is carried as a
// key with value "*" and ExplicitTags left false — this mirrors how
// query.MatchWildcard and query.MatchPresentKey collapse onto the same
// wire shape in the protocol this type documents).
type HTTPSubQuery struct {
	Metric       string            `json:"metric"`
	Aggregator   string            `json:"aggregator"`
	Downsample   string            `json:"downsample"`
	Tags         map[string]string `json:"tags"`
	ExplicitTags bool              `json:"explicitTags"`
}

// ConfigFilePath is the default config file name resolved from the
// current working directory when no path is given as a command-line
// argument.
const ConfigFilePath = "tt.conf"
