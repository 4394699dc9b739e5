package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Level is one tier of the building → wing → area → floor → room cascade.
type Level int

const (
	Building Level = iota
	Wing
	Area
	Floor
	Room
	levelCount
)

var levelNames = [...]string{"building", "wing", "area", "floor", "room"}

func (l Level) String() string {
	if l < 0 || l >= levelCount {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Child returns the level below l and false for rooms
func (l Level) Child() (Level, bool) {
	if l+1 >= levelCount {
		return 0, false
	}
	return l + 1, true
}

// ParseLevel accepts singular or plural names
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSuffix(strings.ToLower(s), "s")
	for i, n := range levelNames {
		if n == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

var (
	ErrUnknownLevel  = errors.New("unknown location level")
	ErrUnknownOption = errors.New("selection is not among the loaded options")
)

// Option is one selectable location
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts numeric upstream ids.
func (o *Option) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID   interface{} `json:"id"`
		Name string      `json:"name"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.ID.(type) {
	case float64:
		o.ID = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		o.ID = v
	case nil:
		o.ID = ""
	default:
		o.ID = fmt.Sprint(v)
	}
	o.Name = raw.Name
	return nil
}

// OptionSource fetches the options of one level scoped by the parent id. Buildings are
// scoped by site and an empty site means all buildings.
type OptionSource interface {
	Options(ctx context.Context, level Level, parentID string) ([]Option, error)
}

// Selector holds the five dependent selections of a ticket.
type Selector struct {
	src      OptionSource
	site     string
	options  [levelCount][]Option
	selected [levelCount]string
}

func NewSelector(src OptionSource, site string) *Selector {
	return &Selector{src: src, site: site}
}

// Load fetches the building list.
func (s *Selector) Load(ctx context.Context) error {
	opts, err := s.src.Options(ctx, Building, s.site)
	if err != nil {
		return fmt.Errorf("failed to load buildings: %w", err)
	}
	s.options[Building] = opts
	return nil
}

// Select sets level to id. Every deeper selection and option list is cleared. A non-empty
// id fetches the immediate child level once; an empty id clears locally without fetching.
func (s *Selector) Select(ctx context.Context, level Level, id string) error {
	if level < 0 || level >= levelCount {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, int(level))
	}
	if id != "" && len(s.options[level]) > 0 && !contains(s.options[level], id) {
		return fmt.Errorf("%w: %s %s", ErrUnknownOption, level, id)
	}

	s.selected[level] = id
	for l := level + 1; l < levelCount; l++ {
		s.selected[l] = ""
		s.options[l] = nil
	}
	if id == "" {
		return nil
	}

	child, ok := level.Child()
	if !ok {
		return nil
	}
	opts, err := s.src.Options(ctx, child, id)
	if err != nil {
		return fmt.Errorf("failed to load %ss: %w", child, err)
	}
	s.options[child] = opts
	return nil
}

// PrefillByName walks the cascade selecting options whose names match, stopping at the
// first level without a match. Existing tickets carry names rather than ids.
func (s *Selector) PrefillByName(ctx context.Context, names [5]string) error {
	if len(s.options[Building]) == 0 {
		if err := s.Load(ctx); err != nil {
			return err
		}
	}
	for l := Building; l < levelCount; l++ {
		if names[l] == "" {
			return nil
		}
		id := ""
		for _, o := range s.options[l] {
			if o.Name == names[l] {
				id = o.ID
				break
			}
		}
		if id == "" {
			return nil
		}
		if err := s.Select(ctx, l, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Selector) Selected(level Level) string { return s.selected[level] }

func (s *Selector) Options(level Level) []Option { return s.options[level] }

// State is the JSON view of the cascade
type State struct {
	Levels []LevelState `json:"levels"`
}

type LevelState struct {
	Level    string   `json:"level"`
	Selected string   `json:"selected,omitempty"`
	Options  []Option `json:"options"`
}

func (s *Selector) State() State {
	st := State{Levels: make([]LevelState, 0, levelCount)}
	for l := Building; l < levelCount; l++ {
		opts := s.options[l]
		if opts == nil {
			opts = []Option{}
		}
		st.Levels = append(st.Levels, LevelState{Level: l.String(), Selected: s.selected[l], Options: opts})
	}
	return st
}

func contains(opts []Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}
