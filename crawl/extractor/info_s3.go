package extractor

import (
	"crypto/md5"
	"fmt"
	"os"
	"strings"

	goeval "github.com/edisonguo/govaluate"
	minio "github.com/minio/minio-go/v6"
)

const DefaultS3Endpoint = "s3.amazonaws.com"

// S3Location is a parsed s3://bucket/prefix URL.
type S3Location struct {
	Bucket string
	Prefix string
}

func IsS3URL(root string) bool {
	return strings.HasPrefix(root, "s3://")
}

func ParseS3URL(root string) (*S3Location, error) {
	if !IsS3URL(root) {
		return nil, fmt.Errorf("not an s3 URL: %s", root)
	}
	rest := strings.TrimPrefix(root, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts[0]) == 0 {
		return nil, fmt.Errorf("missing bucket in %s", root)
	}
	loc := &S3Location{Bucket: parts[0]}
	if len(parts) == 2 {
		loc.Prefix = parts[1]
	}
	return loc, nil
}

// VSIPath is the GDAL virtual file system path of an object.
func VSIPath(bucket, key string) string {
	return fmt.Sprintf("/vsis3/%s/%s", bucket, strings.TrimPrefix(key, "/"))
}

// S3Options configures the S3 client. Empty keys are read from
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, and an empty endpoint from
// AWS_S3_ENDPOINT.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func (o S3Options) withEnv() S3Options {
	if len(o.Endpoint) == 0 {
		o.Endpoint = os.Getenv("AWS_S3_ENDPOINT")
	}
	if len(o.Endpoint) == 0 {
		o.Endpoint = DefaultS3Endpoint
	}
	if len(o.AccessKey) == 0 {
		o.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if len(o.SecretKey) == 0 {
		o.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	return o
}

// ExtractS3 lists the objects under root and returns the ones accepted by
// pattern as /vsis3/ paths. Objects are matched with type "f".
func ExtractS3(root string, pattern string, opts S3Options) ([]*PosixInfo, error) {
	loc, err := ParseS3URL(root)
	if err != nil {
		return nil, err
	}
	expr, err := parsePatternExpression(pattern)
	if err != nil {
		return nil, err
	}

	opts = opts.withEnv()
	client, err := minio.New(opts.Endpoint, opts.AccessKey, opts.SecretKey, opts.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("s3 client for %s: %v", opts.Endpoint, err)
	}

	doneCh := make(chan struct{})
	defer close(doneCh)

	var infos []*PosixInfo
	for obj := range client.ListObjectsV2(loc.Bucket, loc.Prefix, true, doneCh) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing %s: %v", root, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		path := VSIPath(loc.Bucket, obj.Key)
		ok, err := matchObject(expr, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		infos = append(infos, objectInfo(path, obj))
	}
	return infos, nil
}

func matchObject(expr *goeval.EvaluableExpression, path string) (bool, error) {
	return matchEntry(expr, path, "f")
}

// matchEntry evaluates a crawl pattern against one path of type "f" or "d".
// A nil expression accepts everything.
func matchEntry(expr *goeval.EvaluableExpression, path, typ string) (bool, error) {
	if expr == nil {
		return true, nil
	}
	result, err := expr.Evaluate(map[string]interface{}{"type": typ, "path": path})
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}
	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}

func objectInfo(path string, obj minio.ObjectInfo) *PosixInfo {
	signature := fmt.Sprintf("%s%s%d%d", path, obj.ETag, obj.Size, obj.LastModified.UnixNano())
	return &PosixInfo{
		FilePath: path,
		Size:     obj.Size,
		MTime:    obj.LastModified.UTC(),
		ID:       fmt.Sprintf("%x", md5.Sum([]byte(signature))),
	}
}
