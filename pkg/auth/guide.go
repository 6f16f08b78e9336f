package auth

import (
	"fmt"
	"io"
	"strings"

	"amosync/pkg/config"
)

// ShowCredentialGuide prints where to find the credentials a backend needs
func ShowCredentialGuide(w io.Writer, backend string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "OBJECT STORE CREDENTIALS (%s)\n", strings.ToUpper(backend))
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	switch backend {
	case config.BackendS3:
		fmt.Fprintln(w, "amosync needs an access key pair allowed to HeadObject and PutObject")
		fmt.Fprintln(w, "on the target bucket.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  1. In the AWS console open IAM > Users > Security credentials")
		fmt.Fprintln(w, "  2. Create an access key for command line use")
		fmt.Fprintln(w, "  3. Store it:  amosync auth set --backend s3 --access-key-id AKIA...")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "S3-compatible stores (MinIO, R2, Ceph) work the same way; pass")
		fmt.Fprintln(w, "--endpoint with the service URL.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Without stored credentials amosync falls back to the AWS default chain:")
		fmt.Fprintln(w, "AWS_ACCESS_KEY_ID, ~/.aws/credentials, then instance roles.")
	case config.BackendGCS:
		fmt.Fprintln(w, "amosync needs a service account with Storage Object Creator and")
		fmt.Fprintln(w, "Storage Object Viewer on the target bucket.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  1. In the Cloud console open IAM > Service Accounts")
		fmt.Fprintln(w, "  2. Create a JSON key and save it somewhere private")
		fmt.Fprintln(w, "  3. Store it:  amosync auth set --backend gcs --credentials-file key.json")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Without stored credentials amosync uses Application Default Credentials.")
	default:
		fmt.Fprintln(w, "The local backend writes to disk and needs no credentials.")
	}
	fmt.Fprintln(w)
}
