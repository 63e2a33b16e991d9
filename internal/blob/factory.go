package blob

import (
	"context"
	"fmt"

	"github.com/arcadia-bio/biocore/pkg/configuration"
)

// Open constructs a Store from configuration.
func Open(ctx context.Context, conf configuration.BlobOptions) (Store, error) {
	switch Driver(conf.Driver) {
	case DriverFilesystem, "":
		return NewFilesystem(conf.Dir)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Region:    conf.S3Region,
			Bucket:    conf.S3Bucket,
			Endpoint:  conf.S3BaseURL,
			PathStyle: conf.S3Path,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", conf.Driver)
	}
}
