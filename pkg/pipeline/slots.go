package pipeline

// SlotSpec declares the connection rules for one named input slot on a
// node type. MaxConnections of 0 means unbounded. Ordered means the
// position of ids in the slot carries meaning (e.g. merge order), so a
// reorder of the slot invalidates any previously produced artifact.
type SlotSpec struct {
	MaxConnections int
	Ordered        bool
	Required       bool
}

// Unbounded is the MaxConnections value for slots without a capacity.
const Unbounded = 0

// slotSpecs declares the input configuration per (node type, slot key).
// Declared, not inferred: a type absent here accepts no inputs.
var slotSpecs = map[NodeType]map[string]SlotSpec{
	TypeTalkingHead: {
		"script": {MaxConnections: 1, Required: true},
	},
	TypeAnimation: {
		"script": {MaxConnections: 1, Required: true},
	},
	TypeVoiceover: {
		"script": {MaxConnections: 1, Required: true},
	},
	TypeRenderCode: {
		"source": {MaxConnections: 1, Required: true},
	},
	TypeMixAudio: {
		"video": {MaxConnections: 1, Required: true},
		"audio": {MaxConnections: 1, Required: true},
	},
	TypeMergeVideos: {
		"segments": {MaxConnections: Unbounded, Ordered: true, Required: true},
	},
	TypeComposeVideo: {
		"tracks":  {MaxConnections: Unbounded, Ordered: true, Required: true},
		"overlay": {MaxConnections: 1},
	},
}

// Slots returns the declared input slots for a node type. Asset nodes
// (and any unknown type) have none.
func Slots(t NodeType) map[string]SlotSpec {
	return slotSpecs[t]
}

// SlotFor looks up one slot declaration.
func SlotFor(t NodeType, key string) (SlotSpec, bool) {
	spec, ok := slotSpecs[t][key]
	return spec, ok
}
