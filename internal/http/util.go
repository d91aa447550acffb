package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	return parseInt(q.Get("page"), 1), parseInt(q.Get("size"), 20)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// decodeBody 支持 JSON 与表单（x-www-form-urlencoded / multipart）两种请求体；
// 表单字段按 json tag 映射，"true"/"1" 转换为 bool
func decodeBody(r *http.Request, out any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				return errInvalidBody
			}
		} else if err := r.ParseForm(); err != nil {
			return errInvalidBody
		}
		values := make(map[string]any, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				values[k] = v[0]
			}
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Squash:           true,
			Result:           out,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(values); err != nil {
			return errInvalidBody
		}
		return nil
	default:
		if err := readBodyJSON(r, maxBodyBytes, out); err != nil {
			return errInvalidBody
		}
		return nil
	}
}
