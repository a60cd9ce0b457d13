package provision

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmdc-io/pgduck/pkg/depot"
)

// Kind identifies the shape of a generated statement.
type Kind int

// Statement kinds.
const (
	KindRaw Kind = iota
	KindS3Secret
	KindAzureSecret
	KindS3View
	KindAzureView
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindS3Secret:
		return "s3-secret"
	case KindAzureSecret:
		return "azure-secret"
	case KindS3View:
		return "s3-view"
	case KindAzureView:
		return "azure-view"
	default:
		return "raw"
	}
}

// Engine object names for the registered secrets.
const (
	S3SecretName    = "awssecret"
	AzureSecretName = "azsecret"
)

// Statement parameter names.
const (
	ParamKeyID       = "key_id"
	ParamSecret      = "secret"
	ParamRegion      = "region"
	ParamEndpoint    = "endpoint"
	ParamAccountName = "account_name"
	ParamAccountKey  = "account_key"
	ParamPath        = "path"
	ParamSQL         = "sql"
)

const mask = "****"

// sensitive lists parameters replaced by the mask in logged statements.
var sensitive = map[string]bool{
	ParamKeyID:      true,
	ParamSecret:     true,
	ParamAccountKey: true,
}

// Statement is a generated SQL statement kept as structured parameters until
// it is rendered. Its String and LogValue forms are masked.
type Statement struct {
	Kind   Kind
	Name   string
	Params map[string]string
}

// SQL renders the statement for execution.
func (s Statement) SQL() string {
	return s.render(false)
}

// Masked renders the statement with credential values replaced.
func (s Statement) Masked() string {
	return s.render(true)
}

// String implements fmt.Stringer using the masked form.
func (s Statement) String() string {
	return s.Masked()
}

// LogValue implements slog.LogValuer using the masked form.
func (s Statement) LogValue() slog.Value {
	return slog.StringValue(s.Masked())
}

func (s Statement) param(name string, masked bool) string {
	if masked && sensitive[name] {
		return mask
	}
	return s.Params[name]
}

func (s Statement) render(masked bool) string {
	p := func(name string) string { return s.param(name, masked) }

	switch s.Kind {
	case KindS3Secret:
		var b strings.Builder
		fmt.Fprintf(&b, "CREATE SECRET %s (TYPE S3, KEY_ID %s, SECRET %s",
			s.Name, quoteLiteral(p(ParamKeyID)), quoteLiteral(p(ParamSecret)))
		if region := p(ParamRegion); region != "" {
			fmt.Fprintf(&b, ", REGION %s", quoteLiteral(region))
		}
		if endpoint := p(ParamEndpoint); endpoint != "" {
			fmt.Fprintf(&b, ", ENDPOINT %s", quoteLiteral(endpoint))
		}
		b.WriteString(");")
		return b.String()

	case KindAzureSecret:
		account := p(ParamAccountName)
		conn := fmt.Sprintf(
			"DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;TableEndpoint=https://%s.table.core.windows.net/;",
			account, p(ParamAccountKey), account)
		return fmt.Sprintf("CREATE SECRET %s (TYPE AZURE, CONNECTION_STRING %s);", s.Name, quoteLiteral(conn))

	case KindS3View:
		return fmt.Sprintf(
			`CREATE VIEW %s AS (SELECT * FROM iceberg_scan("s3://%s", metadata_compression_codec="gzip", skip_schema_inference=true));`,
			s.Name, p(ParamPath))

	case KindAzureView:
		return fmt.Sprintf(
			`CREATE VIEW %s AS (SELECT * FROM iceberg_scan("azure://%s", allow_moved_paths=true, metadata_compression_codec="gzip", skip_schema_inference=true));`,
			s.Name, p(ParamPath))

	default:
		return p(ParamSQL)
	}
}

// quoteLiteral wraps v in single quotes, doubling embedded quotes. Backslashes
// are left alone since DuckDB string literals do not treat them as escapes.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// SecretStatement builds the credential registration statement for a depot.
func SecretStatement(resolved *depot.Resolved, creds *depot.Credentials) (Statement, error) {
	switch resolved.Type.Backend() {
	case depot.BackendObjectStorage:
		aws, err := creds.AWS()
		if err != nil {
			return Statement{}, err
		}
		params := map[string]string{
			ParamKeyID:  aws.AccessKeyID,
			ParamSecret: aws.SecretAccessKey,
		}
		if resolved.Location.Region != "" {
			params[ParamRegion] = resolved.Location.Region
		}
		if resolved.Location.Endpoint != "" {
			params[ParamEndpoint] = resolved.Location.Endpoint
		}
		return Statement{Kind: KindS3Secret, Name: S3SecretName, Params: params}, nil

	case depot.BackendBlobStorage:
		az, err := creds.Azure()
		if err != nil {
			return Statement{}, err
		}
		return Statement{
			Kind: KindAzureSecret,
			Name: AzureSecretName,
			Params: map[string]string{
				ParamAccountName: az.AccountName,
				ParamAccountKey:  az.AccountKey,
			},
		}, nil

	default:
		return Statement{}, fmt.Errorf("%w: depot type %q", ErrUnsupportedType, resolved.Type)
	}
}

// ViewStatement builds the Iceberg view statement for a dataset.
func ViewStatement(name string, resolved *depot.Resolved) (Statement, error) {
	params := map[string]string{ParamPath: resolved.Path()}
	switch resolved.Type.Backend() {
	case depot.BackendObjectStorage:
		return Statement{Kind: KindS3View, Name: name, Params: params}, nil
	case depot.BackendBlobStorage:
		return Statement{Kind: KindAzureView, Name: name, Params: params}, nil
	default:
		return Statement{}, fmt.Errorf("%w: depot type %q", ErrUnsupportedType, resolved.Type)
	}
}

// RawStatement wraps a configured statement verbatim.
func RawStatement(sql string) Statement {
	return Statement{Kind: KindRaw, Params: map[string]string{ParamSQL: sql}}
}
