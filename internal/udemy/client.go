// Package udemy is a small client for the parts of the udemy REST api needed to list
// subscribed courses, walk their curriculum and resolve supplementary asset links.
package udemy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"lecturevault/internal/components/assert"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_subscribed_courses  = "client.subscribed-courses"
	report_client_course_title        = "client.course-title"
	report_client_curriculum          = "client.curriculum"
	report_client_supplementary_asset = "client.supplementary-asset"
)

const (
	DefaultBaseUrl           = "https://www.udemy.com"
	DefaultCacheUserHint     = "256172910"
	DefaultRequestsPerSecond = 20

	subscribedPageSize = 50
	curriculumPageSize = 1000
	maxListingPages    = 200
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	BaseUrl     string
	Credentials Credentials
	// CacheUserHint is sent as X-Udemy-Cache-User on cookie authenticated requests.
	CacheUserHint string
	// RequestsPerSecond limits the request rate, 0 means DefaultRequestsPerSecond.
	RequestsPerSecond float64
	CloudflareBypass  bool
	Timeout           time.Duration
	// DumpOutput receives full request/response dumps when not nil.
	DumpOutput telemetry.MessageOutput
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	creds         Credentials
	cacheUserHint string
	tel           telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Credentials.AccessToken)

	tel = telemetry.NewScopedAPI("udemy", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.CacheUserHint == "" {
		opts.CacheUserHint = DefaultCacheUserHint
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetHeader("accept", "application/json")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.DumpOutput)

	return &Client{
		BaseUrl:       parsedBaseUrl,
		Http:          httpClient,
		creds:         opts.Credentials,
		cacheUserHint: opts.CacheUserHint,
		tel:           tel,
	}, nil
}

// bearerRequest is used by the listing endpoint which only accepts the token as a bearer.
func (c *Client) bearerRequest(ctx context.Context) *resty.Request {
	return c.Http.R().
		SetContext(ctx).
		SetAuthToken(c.creds.AccessToken)
}

// cookieRequest is used by the per-course and per-asset endpoints which expect the session
// cookie form used by the website itself.
func (c *Client) cookieRequest(ctx context.Context) *resty.Request {
	req := c.Http.R().
		SetContext(ctx).
		SetHeader("x-requested-with", "XMLHttpRequest").
		SetHeader("x-udemy-cache-user", c.cacheUserHint).
		SetCookie(&http.Cookie{Name: "access_token", Value: c.creds.AccessToken})
	if csrf := c.creds.csrf(); csrf != "" {
		req.SetHeader("x-csrftoken", csrf)
		req.SetCookie(&http.Cookie{Name: "csrftoken", Value: csrf})
	}
	if c.creds.ClientId != "" {
		req.SetHeader("x-udemy-client-id", c.creds.ClientId)
		req.SetCookie(&http.Cookie{Name: "client_id", Value: c.creds.ClientId})
	}
	return req
}

func decode[T any](endpoint string, res *resty.Response) (T, error) {
	var out T
	if res.IsError() {
		return out, &StatusError{Endpoint: endpoint, Status: res.StatusCode()}
	}
	err := json.Unmarshal(res.Body(), &out)
	if err != nil {
		return out, &DecodeError{Endpoint: endpoint, Err: err}
	}
	return out, nil
}

// SubscribedCourses lists every course the account is subscribed to, following the
// `next` cursor until it runs out.
func (c *Client) SubscribedCourses(ctx context.Context) ([]course.Course, error) {
	const endpoint = "subscribed-courses"

	var out []course.Course
	next := fmt.Sprintf("/api-2.0/users/me/subscribed-courses/?page_size=%d", subscribedPageSize)
	for pages := 0; next != ""; pages++ {
		if pages >= maxListingPages {
			c.tel.ReportWarning(report_client_subscribed_courses, fmt.Errorf("stopped following next after %d pages", pages))
			break
		}

		res, err := c.bearerRequest(ctx).Get(next)
		if err != nil {
			c.tel.ReportBroken(report_client_subscribed_courses, fmt.Errorf("request: %w", err))
			return nil, fmt.Errorf("%s: %w", endpoint, err)
		}
		body, err := decode[page[courseJson]](endpoint, res)
		if err != nil {
			c.tel.ReportBroken(report_client_subscribed_courses, err)
			return nil, err
		}
		for _, result := range body.Results {
			out = append(out, course.Course{Id: result.Id, Title: result.Title})
		}
		next = body.Next
	}

	c.tel.ReportCount(report_client_subscribed_courses, int64(len(out)))
	return out, nil
}

// CourseTitle fetches the title of a single course.
func (c *Client) CourseTitle(ctx context.Context, courseId int64) (string, error) {
	const endpoint = "course"

	res, err := c.cookieRequest(ctx).
		SetPathParam("course", strconv.FormatInt(courseId, 10)).
		SetQueryParam("fields[course]", "title").
		Get("/api-2.0/courses/{course}/")
	if err != nil {
		c.tel.ReportWarning(report_client_course_title, courseId, err)
		return "", fmt.Errorf("%s: %w", endpoint, err)
	}
	body, err := decode[courseJson](endpoint, res)
	if err != nil {
		c.tel.ReportWarning(report_client_course_title, courseId, err)
		return "", err
	}
	return body.Title, nil
}

// Curriculum fetches the chapters and lectures of a course in curriculum order, a single
// page is requested since course curricula fit in one.
func (c *Client) Curriculum(ctx context.Context, courseId int64) ([]CurriculumItem, error) {
	const endpoint = "subscriber-curriculum-items"

	res, err := c.cookieRequest(ctx).
		SetPathParam("course", strconv.FormatInt(courseId, 10)).
		SetQueryParams(map[string]string{
			"curriculum_types": "chapter,lecture",
			"fields[lecture]":  "title,time_estimation,object_index,supplementary_assets,description",
			"fields[chapter]":  "title,object_index",
			"page_size":        strconv.Itoa(curriculumPageSize),
		}).
		Get("/api-2.0/courses/{course}/subscriber-curriculum-items/")
	if err != nil {
		c.tel.ReportBroken(report_client_curriculum, courseId, err)
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	body, err := decode[page[CurriculumItem]](endpoint, res)
	if err != nil {
		c.tel.ReportBroken(report_client_curriculum, courseId, err)
		return nil, err
	}
	if body.Next != "" {
		c.tel.ReportWarning(report_client_curriculum, courseId, "curriculum has more than one page, the rest is ignored")
	}
	return body.Results, nil
}

// SupplementaryAsset resolves the signed download url of one asset. An empty AssetLink.Url with
// a nil error means the api answered but did not include a file.
func (c *Client) SupplementaryAsset(ctx context.Context, courseId, lectureId, assetId int64) (AssetLink, error) {
	const endpoint = "supplementary-assets"

	res, err := c.cookieRequest(ctx).
		SetPathParams(map[string]string{
			"course":  strconv.FormatInt(courseId, 10),
			"lecture": strconv.FormatInt(lectureId, 10),
			"asset":   strconv.FormatInt(assetId, 10),
		}).
		SetQueryParam("fields[asset]", "download_urls,time_estimation").
		Get("/api-2.0/users/me/subscribed-courses/{course}/lectures/{lecture}/supplementary-assets/{asset}/")
	if err != nil {
		c.tel.ReportDebug(report_client_supplementary_asset, assetId, err)
		return AssetLink{}, fmt.Errorf("%s: %w", endpoint, err)
	}
	body, err := decode[assetJson](endpoint, res)
	if err != nil {
		c.tel.ReportDebug(report_client_supplementary_asset, assetId, err)
		return AssetLink{}, err
	}
	return body.link(), nil
}
