package registry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/domain/model"
	"github.com/m-mizutani/whatcdk/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// productFile is the on-disk product list. TOML uses [[product]] tables, YAML a "product" sequence.
type productFile struct {
	Products []productEntry `toml:"product" yaml:"product"`
}

type productEntry struct {
	Name       string `toml:"name" yaml:"name"`
	Owner      string `toml:"owner" yaml:"owner"`
	Repo       string `toml:"repo" yaml:"repo"`
	Rule       string `toml:"rule" yaml:"rule"`
	Prefix     string `toml:"prefix" yaml:"prefix"`
	TTL        string `toml:"ttl" yaml:"ttl"`
	StripV     bool   `toml:"strip_v" yaml:"strip_v"`
	Required   bool   `toml:"required" yaml:"required"`
	StableOnly bool   `toml:"stable_only" yaml:"stable_only"`
}

// LoadFile reads products from a .toml, .yaml or .yml file
func LoadFile(path string) ([]*model.Product, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read products file",
			goerr.V("path", path),
			goerr.T(types.ErrTagConfiguration))
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, goerr.New("unsupported products file format",
			goerr.V("path", path),
			goerr.V("ext", ext),
			goerr.T(types.ErrTagConfiguration))
	}
}

// ParseTOML decodes a TOML product list
func ParseTOML(data []byte) ([]*model.Product, error) {
	var file productFile
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, goerr.Wrap(err, "failed to decode TOML products",
			goerr.T(types.ErrTagConfiguration))
	}
	return file.toProducts()
}

// ParseYAML decodes a YAML product list
func ParseYAML(data []byte) ([]*model.Product, error) {
	var file productFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, goerr.Wrap(err, "failed to decode YAML products",
			goerr.T(types.ErrTagConfiguration))
	}
	return file.toProducts()
}

func (x *productFile) toProducts() ([]*model.Product, error) {
	if len(x.Products) == 0 {
		return nil, goerr.New("products file has no product", goerr.T(types.ErrTagConfiguration))
	}

	products := make([]*model.Product, 0, len(x.Products))
	for i, e := range x.Products {
		p, err := e.toProduct()
		if err != nil {
			return nil, goerr.Wrap(err, "invalid product entry",
				goerr.V("index", i),
				goerr.V("name", e.Name),
				goerr.T(types.ErrTagConfiguration))
		}
		products = append(products, p)
	}
	return products, nil
}

func (e *productEntry) toProduct() (*model.Product, error) {
	p := &model.Product{
		Name:       e.Name,
		Owner:      e.Owner,
		Repo:       e.Repo,
		StripV:     e.StripV,
		Required:   e.Required,
		StableOnly: e.StableOnly,
	}

	switch model.RuleKind(e.Rule) {
	case "":
		// Rule may be omitted; a prefix implies prefix matching
		if e.Prefix != "" {
			p.Rule = model.PrefixMatch(e.Prefix)
		} else {
			p.Rule = model.LatestStable()
		}
	case model.RuleLatestStable:
		if e.Prefix != "" {
			return nil, goerr.New("latest rule does not take a prefix", goerr.V("prefix", e.Prefix))
		}
		p.Rule = model.LatestStable()
	case model.RulePrefixMatch:
		p.Rule = model.PrefixMatch(e.Prefix)
	default:
		p.Rule = model.SelectionRule{Kind: model.RuleKind(e.Rule), Prefix: e.Prefix}
	}

	if e.TTL != "" {
		ttl, err := time.ParseDuration(e.TTL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid ttl", goerr.V("ttl", e.TTL))
		}
		p.TTL = ttl
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
