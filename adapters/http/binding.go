package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/pkg/jsonapi"
	"github.com/bytedance/sonic"
)

// bindArgs converts the dispatched arguments, headers and body of r into
// typed values keyed by parameter name. Absent parameters are left out.
func bindArgs(r *http.Request, res *resource.Resource, args map[string]string, maxBody int64) (map[string]any, *jsonapi.Error) {
	if jerr := checkConsumes(r, res); jerr != nil {
		return nil, jerr
	}

	values := make(map[string]any, len(res.Signature.Bindings))
	for _, b := range res.Signature.Bindings {
		switch b.Source {
		case resource.SourcePath, resource.SourceQuery:
			raw, ok := args[b.Param.Name]
			if !ok {
				continue
			}
			v, err := convert(b.Param.Kind, raw)
			if err != nil {
				jerr := jsonapi.ErrInvalidParameter(b.Param.Name, err.Error())
				return nil, &jerr
			}
			values[b.Param.Name] = v

		case resource.SourceHeader:
			raw := r.Header.Get(b.Param.Name)
			if raw == "" {
				continue
			}
			v, err := convert(b.Param.Kind, raw)
			if err != nil {
				jerr := jsonapi.NewError(http.StatusBadRequest, "invalid_header", "Invalid Header").
					Detailf("header %s: %v", b.Param.Name, err).
					Header(b.Param.Name).
					Build()
				return nil, &jerr
			}
			values[b.Param.Name] = v

		case resource.SourceBody:
			v, present, jerr := readBody(r, b.Param, maxBody)
			if jerr != nil {
				return nil, jerr
			}
			if present {
				values[b.Param.Name] = v
			}
		}
	}
	return values, nil
}

func readBody(r *http.Request, p resource.Param, maxBody int64) (any, bool, *jsonapi.Error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jerr := jsonapi.ErrPayloadTooLarge(maxBody)
			return nil, false, &jerr
		}
		jerr := jsonapi.ErrBadRequest("read request body: " + err.Error())
		return nil, false, &jerr
	}
	if len(body) == 0 {
		return nil, false, nil
	}

	switch p.Kind {
	case resource.KindBytes:
		return body, true, nil
	case resource.KindJSON:
		var v any
		if err := sonic.ConfigStd.Unmarshal(body, &v); err != nil {
			jerr := jsonapi.NewError(http.StatusBadRequest, "invalid_body", "Invalid Body").
				Detailf("request body is not valid JSON: %v", err).
				Pointer("/").
				Build()
			return nil, false, &jerr
		}
		return v, true, nil
	default:
		v, err := convert(p.Kind, string(body))
		if err != nil {
			jerr := jsonapi.NewError(http.StatusBadRequest, "invalid_body", "Invalid Body").
				Detailf("request body: %v", err).
				Build()
			return nil, false, &jerr
		}
		return v, true, nil
	}
}

// checkConsumes rejects a request body whose media type the resource does
// not accept. Requests without a body or Content-Type are let through.
func checkConsumes(r *http.Request, res *resource.Resource) *jsonapi.Error {
	if len(res.Consumes) == 0 || r.ContentLength == 0 {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err == nil {
		for _, accepted := range res.Consumes {
			if mediaTypeMatches(accepted, mediaType) {
				return nil
			}
		}
	}
	jerr := jsonapi.ErrUnsupportedMediaType(ct, res.Consumes)
	return &jerr
}

// mediaTypeMatches supports "*/*" and "type/*" wildcards.
func mediaTypeMatches(accepted, got string) bool {
	accepted = strings.ToLower(strings.TrimSpace(accepted))
	if mt, _, err := mime.ParseMediaType(accepted); err == nil {
		accepted = mt
	}
	if accepted == "*/*" || accepted == got {
		return true
	}
	if typ, ok := strings.CutSuffix(accepted, "/*"); ok {
		return strings.HasPrefix(got, typ+"/")
	}
	return false
}

func convert(kind resource.Kind, raw string) (any, error) {
	switch kind {
	case resource.KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errors.New("expected an integer")
		}
		return n, nil
	case resource.KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.New("expected a number")
		}
		return f, nil
	case resource.KindBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.New("expected a boolean")
		}
		return b, nil
	case resource.KindBytes:
		return []byte(raw), nil
	case resource.KindJSON:
		var v any
		if err := sonic.ConfigStd.UnmarshalFromString(raw, &v); err != nil {
			return nil, errors.New("expected JSON")
		}
		return v, nil
	default:
		return raw, nil
	}
}
