package detector

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

const artifactVersion = 1

// Artifact field numbers.
const (
	fieldVersion       protowire.Number = 1
	fieldFitted        protowire.Number = 2
	fieldContamination protowire.Number = 3
	fieldSeed          protowire.Number = 4
	fieldThreshold     protowire.Number = 5
	fieldSampleSize    protowire.Number = 6
	fieldSchema        protowire.Number = 7
	fieldTree          protowire.Number = 8
	fieldNumTrees      protowire.Number = 9
	fieldMaxSamples    protowire.Number = 10
	fieldFeatures      protowire.Number = 11
)

// Tree and node field numbers.
const (
	fieldTreeNode protowire.Number = 1

	fieldNodeLeaf    protowire.Number = 1
	fieldNodeFeature protowire.Number = 2
	fieldNodeSplit   protowire.Number = 3
	fieldNodeSize    protowire.Number = 4
)

var errMalformedArtifact = errors.New("malformed model artifact")

// encodeArtifact serialises the forest and its schema.
func encodeArtifact(f *isolationForest, schema []string) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, artifactVersion)
	b = protowire.AppendTag(b, fieldFitted, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(f.fitted))
	b = protowire.AppendTag(b, fieldContamination, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(f.contamination))
	b = protowire.AppendTag(b, fieldSeed, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.seed))
	b = protowire.AppendTag(b, fieldThreshold, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(f.threshold))
	b = protowire.AppendTag(b, fieldSampleSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.sampleSize))
	b = protowire.AppendTag(b, fieldNumTrees, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.numTrees))
	b = protowire.AppendTag(b, fieldMaxSamples, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.maxSamples))
	b = protowire.AppendTag(b, fieldFeatures, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.features))
	for _, name := range schema {
		b = protowire.AppendTag(b, fieldSchema, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	for _, tree := range f.trees {
		b = protowire.AppendTag(b, fieldTree, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeTree(tree))
	}
	return b
}

// encodeTree flattens a tree in pre-order.
func encodeTree(root *isoNode) []byte {
	var b []byte
	var walk func(n *isoNode)
	walk = func(n *isoNode) {
		var nb []byte
		nb = protowire.AppendTag(nb, fieldNodeLeaf, protowire.VarintType)
		nb = protowire.AppendVarint(nb, protowire.EncodeBool(n.leaf))
		nb = protowire.AppendTag(nb, fieldNodeFeature, protowire.VarintType)
		nb = protowire.AppendVarint(nb, uint64(n.feature))
		nb = protowire.AppendTag(nb, fieldNodeSplit, protowire.Fixed64Type)
		nb = protowire.AppendFixed64(nb, math.Float64bits(n.split))
		nb = protowire.AppendTag(nb, fieldNodeSize, protowire.VarintType)
		nb = protowire.AppendVarint(nb, uint64(n.size))

		b = protowire.AppendTag(b, fieldTreeNode, protowire.BytesType)
		b = protowire.AppendBytes(b, nb)
		if !n.leaf {
			walk(n.left)
			walk(n.right)
		}
	}
	walk(root)
	return b
}

// decodeArtifact restores a forest and schema produced by encodeArtifact.
func decodeArtifact(b []byte) (*isolationForest, []string, error) {
	f := &isolationForest{}
	var (
		schema  []string
		version uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case fieldVersion:
				version = v
			case fieldFitted:
				f.fitted = protowire.DecodeBool(v)
			case fieldSeed:
				f.seed = int64(v)
			case fieldSampleSize:
				f.sampleSize = int(v)
			case fieldNumTrees:
				f.numTrees = int(v)
			case fieldMaxSamples:
				f.maxSamples = int(v)
			case fieldFeatures:
				f.features = int(v)
			}
		case typ == protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return nil, nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case fieldContamination:
				f.contamination = math.Float64frombits(v)
			case fieldThreshold:
				f.threshold = math.Float64frombits(v)
			}
		case typ == protowire.BytesType && (num == fieldSchema || num == fieldTree):
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
			if num == fieldSchema {
				schema = append(schema, string(v))
				continue
			}
			tree, err := decodeTree(v)
			if err != nil {
				return nil, nil, err
			}
			f.trees = append(f.trees, tree)
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}

	if version != artifactVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", errMalformedArtifact, version)
	}
	if f.fitted {
		if len(f.trees) == 0 {
			return nil, nil, fmt.Errorf("%w: fitted artifact without trees", errMalformedArtifact)
		}
		if f.features != len(schema) {
			return nil, nil, fmt.Errorf("%w: schema has %d names for %d features", errMalformedArtifact, len(schema), f.features)
		}
		for _, tree := range f.trees {
			if err := checkFeatures(tree, f.features); err != nil {
				return nil, nil, err
			}
		}
	}
	return f, schema, nil
}

func decodeTree(b []byte) (*isoNode, error) {
	var nodes []*isoNode
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldTreeNode || typ != protowire.BytesType {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		v, m := protowire.ConsumeBytes(b)
		if m < 0 {
			return nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
		}
		b = b[m:]
		node, err := decodeNode(v)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	pos := 0
	var link func() (*isoNode, error)
	link = func() (*isoNode, error) {
		if pos >= len(nodes) {
			return nil, fmt.Errorf("%w: truncated tree", errMalformedArtifact)
		}
		node := nodes[pos]
		pos++
		if node.leaf {
			return node, nil
		}
		var err error
		if node.left, err = link(); err != nil {
			return nil, err
		}
		if node.right, err = link(); err != nil {
			return nil, err
		}
		return node, nil
	}
	root, err := link()
	if err != nil {
		return nil, err
	}
	if pos != len(nodes) {
		return nil, fmt.Errorf("%w: %d trailing nodes", errMalformedArtifact, len(nodes)-pos)
	}
	return root, nil
}

func decodeNode(b []byte) (*isoNode, error) {
	node := &isoNode{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case fieldNodeLeaf:
				node.leaf = protowire.DecodeBool(v)
			case fieldNodeFeature:
				node.feature = int(v)
			case fieldNodeSize:
				node.size = int(v)
			}
		case typ == protowire.Fixed64Type && num == fieldNodeSplit:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
			node.split = math.Float64frombits(v)
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", errMalformedArtifact, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return node, nil
}

func checkFeatures(node *isoNode, features int) error {
	if node.leaf {
		return nil
	}
	if node.feature < 0 || node.feature >= features {
		return fmt.Errorf("%w: split on feature %d of %d", errMalformedArtifact, node.feature, features)
	}
	if err := checkFeatures(node.left, features); err != nil {
		return err
	}
	return checkFeatures(node.right, features)
}
