package aggregator

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/observability"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
)

const aggregatePath = "aggregate"

// RemoteBackend delegates aggregation to the module's own aggregate endpoint.
type RemoteBackend struct {
	Client *remote.Client
}

var _ Backend = (*RemoteBackend)(nil)

func (b *RemoteBackend) Aggregate(ctx context.Context, req Request) (*Result, error) {
	conf := b.Client.Config()
	start := time.Now()
	defer func() {
		observability.AggregationDuration.WithLabelValues(conf.Name, "remote").Observe(time.Since(start).Seconds())
	}()

	payload, err := b.payload(req)
	if err != nil {
		return nil, err
	}
	body, err := b.Client.PostJSON(ctx, aggregatePath, payload)
	if err != nil {
		return nil, err
	}
	return decodeResult(ctx, conf.Name, body)
}

// payload builds {elements, task_ids, <cohort>, <timespans>} using the filter names the
// module expects.
func (b *RemoteBackend) payload(req Request) ([]byte, error) {
	params := FilterParams(b.Client.Config())

	elements, err := json.Marshal(req.Elements)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode elements")
	}
	if len(req.Elements) == 0 {
		elements = []byte("{}")
	}

	payload := []byte("{}")
	payload, err = sjson.SetRawBytes(payload, "elements", elements)
	if err != nil {
		return nil, err
	}
	taskIDs := lo.Map(req.TaskIDs, func(id model.ID, _ int) string { return id.String() })
	if payload, err = sjson.SetBytes(payload, "task_ids", taskIDs); err != nil {
		return nil, err
	}
	if len(req.Filter.CohortIDs) > 0 {
		if payload, err = sjson.SetBytes(payload, params.Cohort, req.Filter.CohortIDs); err != nil {
			return nil, err
		}
	}
	if spans := req.Filter.ScaledTimespans(params); len(spans) > 0 {
		if payload, err = sjson.SetBytes(payload, params.Timespans, spans); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// decodeResult reads the module's answer. Warnings and errors are returned even when the
// elements are unusable. Elements that fail to decode are dropped on their own.
func decodeResult(ctx context.Context, module string, body []byte) (*Result, error) {
	l := log.Ctx(ctx).With().Str("component", "aggregator").Str("module", module).Logger()
	res := &Result{
		Elements: map[string]*model.Element{},
		Warnings: messages(gjson.GetBytes(body, "warnings")),
		Errors:   messages(gjson.GetBytes(body, "errors")),
	}

	elements := gjson.GetBytes(body, "elements")
	if !elements.IsObject() || len(elements.Map()) == 0 {
		l.Error().
			Strs("warnings", res.Warnings).
			Strs("errors", res.Errors).
			Str("body", truncate(string(body), 512)).
			Msg("aggregate endpoint returned no elements")
		return res, errors.Wrap(ErrInvalidAggregation, module)
	}

	elements.ForEach(func(key, value gjson.Result) bool {
		el, err := decodeElement(value)
		if err != nil {
			l.Warn().Err(err).Str("element", key.String()).Str("raw", truncate(value.Raw, 128)).Msg("dropping undecodable aggregated element")
			return true
		}
		res.Elements[key.String()] = el
		return true
	})
	return res, nil
}

// decodeElement decodes what the gateway post-processes, the type, attributes and hierarchy,
// and keeps every other field as sent.
func decodeElement(value gjson.Result) (*model.Element, error) {
	if !value.IsObject() {
		return nil, errors.New("element is not an object")
	}
	if t := value.Get("type"); t.Exists() && t.Type != gjson.String {
		return nil, errors.New("element type is not a string")
	}

	el := &model.Element{Type: value.Get("type").String()}
	var err error
	value.ForEach(func(key, field gjson.Result) bool {
		switch key.String() {
		case "type":
		case "attributes":
			err = errors.Wrap(json.Unmarshal([]byte(field.Raw), &el.Attributes), "invalid attributes")
		case "hierarchy":
			err = errors.Wrap(json.Unmarshal([]byte(field.Raw), &el.Hierarchy), "invalid hierarchy")
		default:
			if el.Extra == nil {
				el.Extra = map[string]json.RawMessage{}
			}
			el.Extra[key.String()] = json.RawMessage(field.Raw)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return el, nil
}

// messages accepts a single message or a list of them.
func messages(r gjson.Result) []string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if !r.IsArray() {
		return []string{r.String()}
	}
	return lo.Map(r.Array(), func(m gjson.Result, _ int) string { return m.String() })
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
