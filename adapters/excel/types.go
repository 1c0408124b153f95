package excel

// Column names expected in the input sheet. One row describes one outcome;
// rows sharing a citation are grouped into one study.
const (
	colCitation = "citation"
	colLabel    = "label"
	colKind     = "kind"
	colNote     = "note"
	colTreatN   = "treat_n"
	colControlN = "control_n"
	colUsePre   = "use_pre"

	// kind = custom
	colEffectSize = "effect_size"
	colVariance   = "variance"

	// kind = binary (proportions) or continuous (means)
	colTreatPost   = "treat_post"
	colControlPost = "control_post"
	colTreatPre    = "treat_pre"
	colControlPre  = "control_pre"

	// kind = continuous only
	colTreatPostSD   = "treat_post_sd"
	colControlPostSD = "control_post_sd"
	colTreatPreSD    = "treat_pre_sd"
	colControlPreSD  = "control_pre_sd"
)

// Outcome kinds accepted in the kind column.
const (
	KindCustom     = "custom"
	KindBinary     = "binary"
	KindContinuous = "continuous"
)

// RawRowData represents a data row as header -> cell string pairs
type RawRowData map[string]string
