package udemy

import "fmt"

const (
	ClassChapter = "chapter"
	ClassLecture = "lecture"
)

type SupplementaryAsset struct {
	Id       int64  `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
}

// CurriculumItem is either a chapter (section) or a lecture, told apart by Class.
type CurriculumItem struct {
	Class          string `json:"_class"`
	Id             int64  `json:"id"`
	Title          string `json:"title"`
	ObjectIndex    int    `json:"object_index"`
	TimeEstimation int    `json:"time_estimation"`
	Description    string `json:"description"`

	SupplementaryAssets []SupplementaryAsset `json:"supplementary_assets"`
}

// AssetLink is a resolved, time-limited download link.
type AssetLink struct {
	Url string
	// Duration in seconds, 0 if the api did not say.
	Duration int
}

type page[T any] struct {
	Next    string `json:"next"`
	Results []T    `json:"results"`
}

type courseJson struct {
	Id    int64  `json:"id"`
	Title string `json:"title"`
}

type downloadUrls struct {
	File []struct {
		File  string `json:"file"`
		Label string `json:"label"`
	} `json:"File"`
}

type assetJson struct {
	DownloadUrls   *downloadUrls `json:"download_urls"`
	TimeEstimation int           `json:"time_estimation"`
	Asset          *struct {
		DownloadUrls   *downloadUrls `json:"download_urls"`
		TimeEstimation int           `json:"time_estimation"`
	} `json:"asset"`
}

func (a assetJson) link() AssetLink {
	var out AssetLink
	urls := a.DownloadUrls
	out.Duration = a.TimeEstimation
	if a.Asset != nil {
		if urls == nil || len(urls.File) == 0 {
			urls = a.Asset.DownloadUrls
		}
		if out.Duration == 0 {
			out.Duration = a.Asset.TimeEstimation
		}
	}
	if urls != nil && len(urls.File) > 0 {
		out.Url = urls.File[0].File
	}
	return out
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

// DecodeError is returned when a 2xx response could not be parsed.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %s", e.Endpoint, e.Err.Error())
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
