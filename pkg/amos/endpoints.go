package amos

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the public AMOS archive host
	BaseURL = "http://amos.cse.wustl.edu"

	// CutoffYear is the last year whose archives live under PreCutoffPrefix
	CutoffYear = 2012

	PostCutoffPrefix = "zipfiles"
	PreCutoffPrefix  = "2012zipfiles"
)

// ArchiveName is the file name of a monthly archive, e.g. 2016.01.zip
func ArchiveName(year, month int) string {
	return fmt.Sprintf("%04d.%02d.zip", year, month)
}

// ArchivePath returns the path of a monthly archive relative to the base URL.
// The layout shards by the last two and last four digits of the zero-padded id.
func ArchivePath(cameraID, year, month int) string {
	prefix := PreCutoffPrefix
	if year > CutoffYear {
		prefix = PostCutoffPrefix
	}

	id := fmt.Sprintf("%08d", cameraID)
	return strings.Join([]string{
		prefix,
		strconv.Itoa(year),
		id[len(id)-2:],
		id[len(id)-4:],
		id,
		ArchiveName(year, month),
	}, "/")
}

// Endpoints builds upstream URLs against a base address
type Endpoints struct {
	base string
}

// NewEndpoints creates an Endpoints for base; empty means BaseURL
func NewEndpoints(base string) Endpoints {
	if base == "" {
		base = BaseURL
	}
	return Endpoints{base: strings.TrimRight(base, "/")}
}

// Base returns the configured base address
func (e Endpoints) Base() string {
	return e.base
}

// Resolve returns the archive URL for one camera month
func (e Endpoints) Resolve(cameraID, year, month int) string {
	return e.base + "/" + ArchivePath(cameraID, year, month)
}

func (e Endpoints) CameraList() string {
	return e.base + "/get_cams"
}

func (e Endpoints) CameraInfo(cameraID int) string {
	params := url.Values{}
	params.Set("id", strconv.Itoa(cameraID))
	return e.base + "/webcam_info?" + params.Encode()
}

func (e Endpoints) MonthOfImages(cameraID, year, month int) string {
	params := url.Values{}
	params.Set("camera_id", strconv.Itoa(cameraID))
	params.Set("year", strconv.Itoa(year))
	params.Set("month", strconv.Itoa(month))
	return e.base + "/month_of_images?" + params.Encode()
}

func (e Endpoints) Image(cameraID int, timestamp string) string {
	return fmt.Sprintf("%s/image/%d/%s.jpg", e.base, cameraID, timestamp)
}
