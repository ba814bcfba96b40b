package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

func MakeConnStr(conf Database) (string, error) {
	host, err := commoncfg.LoadValueFromSourceRef(conf.Host)
	if err != nil {
		return "", fmt.Errorf("loading db host: %w", err)
	}

	user, err := commoncfg.LoadValueFromSourceRef(conf.User)
	if err != nil {
		return "", fmt.Errorf("loading db user: %w", err)
	}

	password, err := commoncfg.LoadValueFromSourceRef(conf.Password)
	if err != nil {
		return "", fmt.Errorf("loading db password: %w", err)
	}

	params := []string{
		"host=" + quoteConnValue(string(host)),
		"user=" + quoteConnValue(string(user)),
		"password=" + quoteConnValue(string(password)),
		"dbname=" + quoteConnValue(conf.Name),
		"port=" + quoteConnValue(conf.Port),
	}
	if conf.SSLMode != "" {
		params = append(params, "sslmode="+quoteConnValue(conf.SSLMode))
	}

	return strings.Join(params, " "), nil
}

// quoteConnValue quotes a keyword/value connection string value when it is
// empty or holds spaces, quotes or backslashes.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}

	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)

	return "'" + v + "'"
}

// MakeSQLiteDSN builds a modernc.org/sqlite data source name with foreign keys
// enabled and a busy timeout, so concurrent writers wait instead of failing.
func MakeSQLiteDSN(conf SQLite) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")

	return "file:" + conf.Path + "?" + q.Encode()
}
