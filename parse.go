package stencil

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/jessevdk/go-flags"
)

var ErrBadSequence = errors.New("bad sequence value")

// Kind says how a constructor parameter is given on the command line.
type Kind int

const (
	// KindScalar takes one value.
	KindScalar Kind = iota
	// KindToggle takes no value. Giving it flips the default.
	KindToggle
	// KindSequence takes a fixed number of values.
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindToggle:
		return "toggle"
	case KindSequence:
		return "sequence"
	default:
		return "scalar"
	}
}

// Param is one constructor parameter read off an options struct.
type Param struct {
	Name    string
	Default interface{}
	Kind    Kind
	Arity   int

	index []int
}

// ReadParams lists the parameters of an options struct, one per field with a
// long tag, in field order. The field values of defaults are the parameter
// defaults. defaults may be a struct or a pointer to one.
func ReadParams(defaults interface{}) ([]Param, error) {
	v := reflect.ValueOf(defaults)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errors.New("nil options")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("options must be a struct, got %s", v.Kind())
	}

	t := v.Type()
	params := make([]Param, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("long")
		if name == "" || !field.IsExported() {
			continue
		}

		fv := v.Field(i)
		param := Param{
			Name:    name,
			Default: fv.Interface(),
			Kind:    KindScalar,
			Arity:   1,
			index:   field.Index,
		}
		switch fv.Kind() {
		case reflect.Bool:
			param.Kind = KindToggle
			param.Arity = 0
		case reflect.Array, reflect.Slice:
			param.Kind = KindSequence
			param.Arity = fv.Len()
		}
		params = append(params, param)
	}
	return params, nil
}

// ConstructorParser is a command line parser with one flag per parameter of
// an options struct. Parsing writes into the struct. More option groups can
// sit next to the parameters and are filled the same way.
type ConstructorParser struct {
	parser *flags.Parser
	target reflect.Value
	params []Param
	extras []*flags.Group
}

// NewConstructorParser builds a parser for target, which must be a pointer to
// an options struct. The values already in target are the defaults.
func NewConstructorParser(name string, target interface{}, extras ...interface{}) (*ConstructorParser, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("target must be a pointer to a struct, got %T", target)
	}

	params, err := ReadParams(target)
	if err != nil {
		return nil, err
	}

	unmarshaler := reflect.TypeOf((*flags.Unmarshaler)(nil)).Elem()
	for _, p := range params {
		if p.Kind != KindSequence {
			continue
		}
		field := v.Elem().FieldByIndex(p.index)
		if field.Kind() == reflect.Array && !field.Addr().Type().Implements(unmarshaler) {
			return nil, fmt.Errorf("parameter %s: array type %s cannot be parsed", p.Name, field.Type())
		}
	}

	cp := &ConstructorParser{
		parser: flags.NewNamedParser(name, flags.HelpFlag|flags.PassDoubleDash),
		target: v.Elem(),
		params: params,
	}
	if _, err := cp.parser.AddGroup("Parameters", "", target); err != nil {
		return nil, fmt.Errorf("could not add parameters: %w", err)
	}
	for _, extra := range extras {
		if _, err := cp.AddGroup("Options", extra); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

// AddGroup adds another struct of options to the parser.
func (cp *ConstructorParser) AddGroup(description string, data interface{}) (*flags.Group, error) {
	g, err := cp.parser.AddGroup(description, "", data)
	if err != nil {
		return nil, fmt.Errorf("could not add group %q: %w", description, err)
	}
	cp.extras = append(cp.extras, g)
	return g, nil
}

func (cp *ConstructorParser) Params() []Param {
	return cp.params
}

func (cp *ConstructorParser) Parser() *flags.Parser {
	return cp.parser
}

// Parse parses args into the target and the extra groups and returns the
// positional arguments. Toggles that were given are set to the opposite of
// their default.
func (cp *ConstructorParser) Parse(args []string) ([]string, error) {
	rest, err := cp.parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	for _, p := range cp.params {
		opt := cp.parser.FindOptionByLongName(p.Name)
		if opt == nil || !opt.IsSet() {
			continue
		}
		field := cp.target.FieldByIndex(p.index)
		switch p.Kind {
		case KindToggle:
			field.SetBool(!p.Default.(bool))
		case KindSequence:
			if field.Kind() == reflect.Slice && field.Len() != p.Arity {
				return nil, fmt.Errorf("%w: %s takes %d values, got %d", ErrBadSequence, p.Name, p.Arity, field.Len())
			}
		}
	}
	return rest, nil
}

// Split returns the parameter values and the values of the other options,
// both keyed by long flag name, or by short name for options without one.
func (cp *ConstructorParser) Split() (construct, other map[string]interface{}) {
	construct = make(map[string]interface{}, len(cp.params))
	for _, p := range cp.params {
		construct[p.Name] = cp.target.FieldByIndex(p.index).Interface()
	}

	other = make(map[string]interface{})
	var walk func(g *flags.Group)
	walk = func(g *flags.Group) {
		for _, opt := range g.Options() {
			name := opt.LongName
			if name == "" {
				name = string(opt.ShortName)
			}
			other[name] = opt.Value()
		}
		for _, sub := range g.Groups() {
			walk(sub)
		}
	}
	for _, g := range cp.extras {
		walk(g)
	}
	return construct, other
}
