package amos

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	errs "amosync/pkg/errors"
)

// fieldKind is how a known webcam_info field is coerced
type fieldKind int

const (
	kindInt fieldKind = iota
	kindFloat
	kindTime
)

// infoFieldKinds lists the typed fields of a webcam record. Anything else is kept as text.
var infoFieldKinds = map[string]fieldKind{
	"id":              kindInt,
	"latitude":        kindFloat,
	"longitude":       kindFloat,
	"ip_latitude":     kindFloat,
	"ip_longitude":    kindFloat,
	"images_captured": kindInt,
	"date_added":      kindTime,
	"last_capture":    kindTime,
	"width":           kindInt,
	"height":          kindInt,
}

// upstreamTimeLayouts are tried in order when parsing record dates
var upstreamTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102_150405",
}

// parseCameraList parses the <br>-delimited "id: (lat, lon)" lines of get_cams.
// Lines that do not match are returned in skipped rather than failing the list.
func parseCameraList(body string) (cameras []Camera, skipped []string) {
	for _, line := range strings.Split(body, "<br>") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		camera, ok := parseCameraLine(line)
		if !ok {
			skipped = append(skipped, line)
			continue
		}
		cameras = append(cameras, camera)
	}
	return cameras, skipped
}

func parseCameraLine(line string) (Camera, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 3 {
		return Camera{}, false
	}

	id, err := strconv.Atoi(strings.TrimSuffix(tokens[0], ":"))
	if err != nil {
		return Camera{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimPrefix(tokens[1], "("), ","), 64)
	if err != nil {
		return Camera{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSuffix(tokens[2], ")"), 64)
	if err != nil {
		return Camera{}, false
	}

	return Camera{ID: id, Latitude: lat, Longitude: lon}, true
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlWebcam struct {
	Fields []xmlField `xml:",any"`
}

// parseCameraInfo decodes the first <webcam> element of a webcam_info document.
// A document without one yields ErrNotFound.
func parseCameraInfo(cameraID int, body []byte) (*CameraRecord, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, notFound(cameraID)
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, notFound(cameraID)
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "camera %d: malformed webcam_info document", cameraID)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "webcam" {
			continue
		}

		var raw xmlWebcam
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "camera %d: malformed webcam element", cameraID)
		}
		return buildRecord(cameraID, raw.Fields), nil
	}
}

func notFound(cameraID int) error {
	return &errs.Error{
		Type:    errs.ErrorTypeNotFound,
		Message: fmt.Sprintf("camera %d: no webcam record", cameraID),
	}
}

func buildRecord(cameraID int, fields []xmlField) *CameraRecord {
	record := &CameraRecord{ID: cameraID, Extra: map[string]string{}}

	for _, f := range fields {
		name := f.XMLName.Local
		text := strings.TrimSpace(f.Value)

		if name == "tags" {
			record.Tags = splitTags(text)
			continue
		}

		kind, typed := infoFieldKinds[name]
		if !typed {
			record.Extra[name] = f.Value
			continue
		}

		switch kind {
		case kindInt:
			v := parseInt(text)
			switch name {
			case "id":
				// the record is keyed by the requested camera; the server's
				// copy of the id is not trusted to match it
			case "images_captured":
				record.ImagesCaptured = v
			case "width":
				record.Width = v
			case "height":
				record.Height = v
			}
		case kindFloat:
			v := parseFloat(text)
			switch name {
			case "latitude":
				record.Latitude = v
			case "longitude":
				record.Longitude = v
			case "ip_latitude":
				record.IPLatitude = v
			case "ip_longitude":
				record.IPLongitude = v
			}
		case kindTime:
			v := parseTime(text)
			switch name {
			case "date_added":
				record.DateAdded = v
			case "last_capture":
				record.LastCapture = v
			}
		}
	}

	if len(record.Extra) == 0 {
		record.Extra = nil
	}
	return record
}

func splitTags(text string) []string {
	tags := []string{}
	for _, t := range strings.Split(text, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseInt(text string) *int {
	v, err := strconv.Atoi(text)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(text string) *float64 {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseTime accepts the layouts in upstreamTimeLayouts; zone-less values are UTC
func parseTime(text string) *time.Time {
	if text == "" {
		return nil
	}
	for _, layout := range upstreamTimeLayouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// parseTimestampList returns the text of every <image> element with the .jpg suffix removed
func parseTimestampList(body []byte) ([]string, error) {
	timestamps := []string{}
	if len(bytes.TrimSpace(body)) == 0 {
		return timestamps, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return timestamps, nil
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "malformed month_of_images document")
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "image" {
			continue
		}

		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "malformed image element")
		}
		timestamps = append(timestamps, strings.TrimSuffix(strings.TrimSpace(text), ".jpg"))
	}
}
