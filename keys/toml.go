package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Subaru-PFS/tron-actorcore-sub000/vtype"
)

// Dictionary file schema. A dictionary is a TOML document:
//
//	name = "mcs"
//	version = "1.2"
//
//	[[key]]
//	name = "temperature"
//	help = "enclosure air temperature"
//	refresh_actor = "mcs"
//	refresh_cmd = "status"
//
//	  [[key.value]]
//	  type = "float"
//	  units = "C"
//	  invalid = "NaN"
//
// Repeat ranges default to exactly once; max = -1 means unbounded.
type dictFile struct {
	Name    string    `toml:"name"`
	Version string    `toml:"version"`
	Keys    []keyDecl `toml:"key"`
}

type keyDecl struct {
	Name         string      `toml:"name"`
	Help         string      `toml:"help"`
	Unique       string      `toml:"unique"`
	RefreshActor string      `toml:"refresh_actor"`
	RefreshCmd   string      `toml:"refresh_cmd"`
	Cache        bool        `toml:"cache"`
	Values       []valueDecl `toml:"value"`
}

type valueDecl struct {
	Type    string   `toml:"type"`
	Units   string   `toml:"units"`
	Help    string   `toml:"help"`
	Invalid string   `toml:"invalid"`
	Min     *int     `toml:"min"`
	Max     *int     `toml:"max"`
	Labels  []string `toml:"labels"`
	False   string   `toml:"false"`
	True    string   `toml:"true"`
	Fields  []string `toml:"fields"`
}

// decodeDictionary parses TOML source into a Dictionary.
func decodeDictionary(data []byte) (*Dictionary, error) {
	var f dictFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Name == "" {
		return nil, fmt.Errorf("dictionary has no name")
	}
	major, minor, err := parseVersion(f.Version)
	if err != nil {
		return nil, err
	}
	keys := make([]*Key, 0, len(f.Keys))
	for _, kd := range f.Keys {
		k, err := kd.build()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", kd.Name, err)
		}
		keys = append(keys, k)
	}
	return NewDictionary(f.Name, major, minor, keys...)
}

func parseVersion(v string) (major, minor int, err error) {
	parts := strings.SplitN(v, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("version %q is not major.minor", v)
	}
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("version %q is not major.minor", v)
	}
	if minor, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("version %q is not major.minor", v)
	}
	return major, minor, nil
}

func (kd keyDecl) build() (*Key, error) {
	entries := make([]vtype.Repeated, 0, len(kd.Values))
	for i, vd := range kd.Values {
		rep, err := vd.build()
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		entries = append(entries, rep)
	}
	types, err := NewTypedValues(entries...)
	if err != nil {
		return nil, err
	}
	return &Key{
		Name:         kd.Name,
		Types:        types,
		Help:         kd.Help,
		Unique:       kd.Unique,
		RefreshActor: kd.RefreshActor,
		RefreshCmd:   kd.RefreshCmd,
		DoCache:      kd.Cache,
	}, nil
}

func (vd valueDecl) build() (vtype.Repeated, error) {
	meta := vtype.Meta{UnitsText: vd.Units, HelpText: vd.Help, InvalidTok: vd.Invalid}

	var t vtype.ValueType
	switch strings.ToLower(vd.Type) {
	case "int":
		t = vtype.Int{Meta: meta}
	case "uint":
		t = vtype.UInt{Meta: meta}
	case "hex":
		t = vtype.Hex{Meta: meta}
	case "float":
		t = vtype.Float{Meta: meta}
	case "string":
		t = vtype.String{Meta: meta}
	case "bool":
		if vd.False == "" || vd.True == "" {
			return vtype.Repeated{}, fmt.Errorf("bool type needs false and true tokens")
		}
		t = vtype.Bool{Meta: meta, FalseTok: vd.False, TrueTok: vd.True}
	case "enum":
		if len(vd.Labels) == 0 {
			return vtype.Repeated{}, fmt.Errorf("enum type needs labels")
		}
		t = vtype.Enum{Meta: meta, Labels: vd.Labels}
	case "bits":
		b, err := vtype.NewBits(meta, vd.Fields...)
		if err != nil {
			return vtype.Repeated{}, err
		}
		t = b
	default:
		return vtype.Repeated{}, fmt.Errorf("unknown value type %q", vd.Type)
	}

	min, max := 1, 1
	if vd.Min != nil {
		min = *vd.Min
	}
	if vd.Max != nil {
		max = *vd.Max
	} else if vd.Min != nil {
		max = min
	}
	if max == -1 {
		max = vtype.Unbounded
	}
	return vtype.Between(t, min, max), nil
}
