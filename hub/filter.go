package hub

import (
	"github.com/itchyny/gojq"
	"github.com/sirupsen/logrus"
)

// FilterEngine compiles per-observer jq expressions.
type FilterEngine struct {
	logger logrus.FieldLogger
}

func NewFilterEngine(logger logrus.FieldLogger) *FilterEngine {
	return &FilterEngine{
		logger: logger,
	}
}

// Filter is a compiled jq program evaluated against each outgoing event.
type Filter struct {
	expression string
	code       *gojq.Code
	logger     logrus.FieldLogger
}

func (fe *FilterEngine) Compile(expression string) (*Filter, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, err
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, err
	}

	return &Filter{
		expression: expression,
		code:       code,
		logger:     fe.logger,
	}, nil
}

func (f *Filter) String() string {
	return f.expression
}

// Match runs the program on event, the decoded JSON form of a broadcast.
// Any truthy result matches; errors never do.
func (f *Filter) Match(event any) bool {
	iter := f.code.Run(event)

	for {
		v, ok := iter.Next()
		if !ok {
			return false
		}

		if err, ok := v.(error); ok {
			f.logger.WithError(err).Debug("filter evaluation failed")
			return false
		}

		if v != nil && v != false {
			return true
		}
	}
}
