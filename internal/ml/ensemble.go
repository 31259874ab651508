package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sustainai/internal/features"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	bundleFormatVersion = 1
	defaultBaseScore    = 0.5
	maxTreeDepth        = 256
	maxTreeNodes        = 1 << 20
)

// bundleDoc is the on-disk shape of a self-describing ensemble artifact.
// Trees use the node layout of XGBoost's JSON dump
// (Booster.get_dump(dump_format="json", with_stats=True)).
type bundleDoc struct {
	FormatVersion      int               `json:"format_version" msgpack:"format_version"`
	Objective          string            `json:"objective" msgpack:"objective"`
	BaseScore          *float64          `json:"base_score,omitempty" msgpack:"base_score,omitempty"`
	Features           []string          `json:"features" msgpack:"features"`
	FeatureImportances []float64         `json:"feature_importances,omitempty" msgpack:"feature_importances,omitempty"`
	Metadata           *artifactMetadata `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	Trees              []treeNode        `json:"trees" msgpack:"trees"`
}

type treeNode struct {
	NodeID         int        `json:"nodeid" msgpack:"nodeid"`
	Split          string     `json:"split,omitempty" msgpack:"split,omitempty"`
	SplitCondition *float64   `json:"split_condition,omitempty" msgpack:"split_condition,omitempty"`
	Yes            *int       `json:"yes,omitempty" msgpack:"yes,omitempty"`
	No             *int       `json:"no,omitempty" msgpack:"no,omitempty"`
	Missing        *int       `json:"missing,omitempty" msgpack:"missing,omitempty"`
	Gain           *float64   `json:"gain,omitempty" msgpack:"gain,omitempty"`
	Cover          *float64   `json:"cover,omitempty" msgpack:"cover,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty" msgpack:"leaf,omitempty"`
	Children       []treeNode `json:"children,omitempty" msgpack:"children,omitempty"`
}

// node is a flattened tree node. Children always sit at higher indices than
// their parent, so evaluation terminates.
type node struct {
	feature   int // -1 for leaves
	threshold float32 // split values are compared in single precision
	yes       int
	no        int
	missing   int
	value     float64
}

type tree struct {
	nodes []node
}

func (t *tree) eval(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		v := x[n.feature]
		switch {
		case math.IsNaN(v):
			i = n.missing
		case float32(v) < n.threshold:
			i = n.yes
		default:
			i = n.no
		}
	}
}

type objective int

const (
	objectiveIdentity objective = iota
	objectiveLogistic
)

func parseObjective(s string) (objective, error) {
	switch s {
	case "", "reg:squarederror", "reg:linear", "reg:absoluteerror", "reg:pseudohubererror":
		return objectiveIdentity, nil
	case "reg:logistic", "binary:logistic":
		return objectiveLogistic, nil
	default:
		return 0, corruptErrorf("unsupported objective %q", s)
	}
}

// treeEnsemble is the Handle built from a bundle artifact.
type treeEnsemble struct {
	trees       []tree
	baseMargin  float64
	objective   objective
	importances []float64
	info        ModelInfo
}

func (e *treeEnsemble) PredictValues(values []float64) float64 {
	margin := e.baseMargin
	for i := range e.trees {
		margin += e.trees[i].eval(values)
	}
	if e.objective == objectiveLogistic {
		return 1.0 / (1.0 + math.Exp(-margin))
	}
	return margin
}

func (e *treeEnsemble) Importances() []float64 {
	out := make([]float64, len(e.importances))
	copy(out, e.importances)
	return out
}

func (e *treeEnsemble) NumFeatures() int {
	return len(e.info.Features)
}

func (e *treeEnsemble) Info() ModelInfo {
	info := e.info
	info.Features = append([]string(nil), e.info.Features...)
	return info
}

func decodeJSONBundle(data []byte) (*treeEnsemble, error) {
	var doc bundleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, corruptErrorf("failed to parse JSON bundle: %w", err)
	}
	return compileBundle(&doc)
}

func decodeMsgpackBundle(data []byte) (*treeEnsemble, error) {
	var doc bundleDoc
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, corruptErrorf("failed to parse msgpack bundle: %w", err)
	}
	return compileBundle(&doc)
}

func compileBundle(doc *bundleDoc) (*treeEnsemble, error) {
	if doc.FormatVersion != bundleFormatVersion {
		return nil, corruptErrorf("unsupported bundle format_version %d", doc.FormatVersion)
	}
	obj, err := parseObjective(doc.Objective)
	if err != nil {
		return nil, err
	}
	if err := checkFeatureNames(doc.Features); err != nil {
		return nil, err
	}
	if len(doc.Trees) == 0 {
		return nil, corruptErrorf("bundle contains no trees")
	}

	baseScore := defaultBaseScore
	if doc.BaseScore != nil {
		baseScore = *doc.BaseScore
	}
	if math.IsNaN(baseScore) || math.IsInf(baseScore, 0) {
		return nil, corruptErrorf("base_score is not finite")
	}
	baseMargin := baseScore
	if obj == objectiveLogistic {
		if baseScore <= 0 || baseScore >= 1 {
			return nil, corruptErrorf("base_score %v must lie in (0, 1) for a logistic objective", baseScore)
		}
		baseMargin = math.Log(baseScore / (1 - baseScore))
	}

	ens := &treeEnsemble{
		trees:      make([]tree, len(doc.Trees)),
		baseMargin: baseMargin,
		objective:  obj,
		info: ModelInfo{
			Format:    FormatBundle,
			Objective: doc.Objective,
			Features:  append([]string(nil), doc.Features...),
			NumTrees:  len(doc.Trees),
		},
	}
	if doc.Metadata != nil {
		ens.info.Version = doc.Metadata.Version
		ens.info.TrainedAt = doc.Metadata.TrainedAt
		ens.info.TrainingRows = doc.Metadata.TrainingRows
		ens.info.ValidationR2 = doc.Metadata.ValidationR2
	}

	stats := newSplitStats(len(doc.Features))
	for i := range doc.Trees {
		t, err := compileTree(&doc.Trees[i], doc.Features, stats)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		ens.trees[i] = t
	}

	if doc.FeatureImportances != nil {
		if err := checkImportances(doc.FeatureImportances, len(doc.Features)); err != nil {
			return nil, err
		}
		ens.importances = append([]float64(nil), doc.FeatureImportances...)
		ens.info.ImportanceSource = "artifact"
	} else {
		ens.importances, ens.info.ImportanceSource = stats.importances()
	}
	return ens, nil
}

// checkFeatureNames requires the declared columns to be the canonical ones in
// canonical order. XGBoost's positional names f0..f4 are accepted too.
func checkFeatureNames(names []string) error {
	if len(names) != features.Count {
		return schemaErrorf("model declares %d features, expected %d", len(names), features.Count)
	}
	for i, s := range names {
		if s == "f"+strconv.Itoa(i) {
			continue
		}
		n, ok := features.Lookup(s)
		if !ok {
			return schemaErrorf("unknown feature %q at position %d", s, i)
		}
		if n.Index() != i {
			return schemaErrorf("feature %q at position %d, expected at %d", s, i, n.Index())
		}
	}
	return nil
}

func resolveSplit(split string, declared []string) (int, error) {
	for i, s := range declared {
		if strings.EqualFold(s, split) {
			return i, nil
		}
	}
	// declared columns are already known to be canonical
	if n, ok := features.Lookup(split); ok {
		return n.Index(), nil
	}
	if rest, ok := strings.CutPrefix(split, "f"); ok {
		if idx, err := strconv.Atoi(rest); err == nil && idx >= 0 {
			if idx >= len(declared) {
				return 0, schemaErrorf("split on feature index %d, model has %d features", idx, len(declared))
			}
			return idx, nil
		}
	}
	return 0, schemaErrorf("split on unknown feature %q", split)
}

func compileTree(root *treeNode, declared []string, stats *splitStats) (tree, error) {
	var flat []*treeNode
	index := make(map[int]int)

	var collect func(n *treeNode, depth int) error
	collect = func(n *treeNode, depth int) error {
		if depth > maxTreeDepth {
			return corruptErrorf("tree deeper than %d levels", maxTreeDepth)
		}
		if len(flat) >= maxTreeNodes {
			return corruptErrorf("tree has more than %d nodes", maxTreeNodes)
		}
		if _, dup := index[n.NodeID]; dup {
			return corruptErrorf("duplicate node id %d", n.NodeID)
		}
		index[n.NodeID] = len(flat)
		flat = append(flat, n)
		for i := range n.Children {
			if err := collect(&n.Children[i], depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(root, 0); err != nil {
		return tree{}, err
	}

	t := tree{nodes: make([]node, len(flat))}
	for i, n := range flat {
		if n.Leaf != nil {
			if len(n.Children) > 0 {
				return tree{}, corruptErrorf("leaf node %d has children", n.NodeID)
			}
			if math.IsNaN(*n.Leaf) || math.IsInf(*n.Leaf, 0) {
				return tree{}, corruptErrorf("leaf node %d has a non-finite value", n.NodeID)
			}
			t.nodes[i] = node{feature: -1, value: *n.Leaf}
			continue
		}
		if n.Split == "" || n.SplitCondition == nil || n.Yes == nil || n.No == nil {
			return tree{}, corruptErrorf("node %d is neither a leaf nor a complete split", n.NodeID)
		}
		if math.IsNaN(*n.SplitCondition) {
			return tree{}, corruptErrorf("node %d has a NaN split condition", n.NodeID)
		}
		feat, err := resolveSplit(n.Split, declared)
		if err != nil {
			return tree{}, fmt.Errorf("node %d: %w", n.NodeID, err)
		}
		missing := *n.Yes
		if n.Missing != nil {
			missing = *n.Missing
		}
		yes, err := childIndex(n, *n.Yes, index)
		if err != nil {
			return tree{}, err
		}
		no, err := childIndex(n, *n.No, index)
		if err != nil {
			return tree{}, err
		}
		miss, err := childIndex(n, missing, index)
		if err != nil {
			return tree{}, err
		}
		t.nodes[i] = node{
			feature:   feat,
			threshold: float32(*n.SplitCondition),
			yes:       yes,
			no:        no,
			missing:   miss,
		}
		stats.add(feat, n.Gain)
	}
	return t, nil
}

// childIndex resolves a branch target, which must be a direct child of n.
func childIndex(n *treeNode, id int, index map[int]int) (int, error) {
	for i := range n.Children {
		if n.Children[i].NodeID == id {
			return index[id], nil
		}
	}
	return 0, corruptErrorf("node %d branches to %d, which is not one of its children", n.NodeID, id)
}

// splitStats accumulates per-feature split counts and gains for deriving
// importances when the artifact does not ship them.
type splitStats struct {
	count    []float64
	gain     []float64
	allGains bool
	splits   int
}

func newSplitStats(width int) *splitStats {
	return &splitStats{
		count:    make([]float64, width),
		gain:     make([]float64, width),
		allGains: true,
	}
}

func (s *splitStats) add(feature int, gain *float64) {
	s.splits++
	s.count[feature]++
	if gain == nil || math.IsNaN(*gain) || math.IsInf(*gain, 0) || *gain < 0 {
		s.allGains = false
		return
	}
	s.gain[feature] += *gain
}

// importances returns normalized average gain per feature when every split
// carries a gain, otherwise normalized split counts.
func (s *splitStats) importances() ([]float64, string) {
	out := make([]float64, len(s.count))
	source := "weight"
	if s.allGains && s.splits > 0 {
		source = "gain"
		for i := range out {
			if s.count[i] > 0 {
				out[i] = s.gain[i] / s.count[i]
			}
		}
	} else {
		copy(out, s.count)
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out, source
}
