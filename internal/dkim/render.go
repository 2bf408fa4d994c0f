// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dkim

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/juju/errors"
)

// ConfModel carries the values interpolated into opendkim.conf.
type ConfModel struct {
	Canonicalization string
	Mode             string
	Socket           string
	SignHeaders      string
	InternalHosts    string
	KeyTablePath     string
	SigningTablePath string
}

// SigningMode reports whether the rendered daemon signs mail. The key
// tables are only referenced in signing mode.
func (m ConfModel) SigningMode() bool {
	return strings.Contains(m.Mode, "s")
}

// Artifacts holds the rendered on-disk form of a DesiredState. Key
// content is secret material; artifacts must never be logged.
type Artifacts struct {
	Conf         []byte
	KeyTable     []byte
	SigningTable []byte
	Keys         map[string][]byte
}

const confTemplate = `# This file is managed by the opendkim operator.
# Local changes will be overwritten on the next reconcile pass.
Syslog			yes
SyslogSuccess		yes
Canonicalization	{{.Canonicalization}}
Mode			{{.Mode}}
{{if .SigningMode}}SignHeaders		{{.SignHeaders}}
KeyTable		file:{{.KeyTablePath}}
SigningTable		refile:{{.SigningTablePath}}
{{end}}InternalHosts		{{.InternalHosts}}
Socket			{{.Socket}}
UserID			opendkim
UMask			007
PidFile			/run/opendkim/opendkim.pid
TrustAnchorFile		/usr/share/dns/root.key
`

var confTmpl = template.Must(template.New("opendkim.conf").Parse(confTemplate))

// Render produces the artifacts for the desired state. Table files end
// with a newline only when they have content, matching the charm's
// historical output.
func Render(desired DesiredState) (Artifacts, error) {
	var buf bytes.Buffer
	if err := confTmpl.Execute(&buf, desired.Conf); err != nil {
		return Artifacts{}, errors.Trace(err)
	}
	arts := Artifacts{
		Conf:         buf.Bytes(),
		KeyTable:     []byte(strings.Join(desired.KeyTable, "\n")),
		SigningTable: []byte(strings.Join(desired.SigningTable, "\n")),
		Keys:         make(map[string][]byte, len(desired.Keys)),
	}
	for name, pem := range desired.Keys {
		arts.Keys[name] = []byte(pem)
	}
	return arts, nil
}

// Hash returns the hex SHA-256 of a canonical encoding of the
// artifacts. Equal desired states always produce equal hashes, so a
// hash match means applying would be a no-op.
func Hash(arts Artifacts) string {
	h := sha256.New()
	write := func(name string, content []byte) {
		fmt.Fprintf(h, "%s %d\n", name, len(content))
		h.Write(content)
	}
	write("conf", arts.Conf)
	write("keytable", arts.KeyTable)
	write("signingtable", arts.SigningTable)
	names := make([]string, 0, len(arts.Keys))
	for name := range arts.Keys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		write("key:"+name, arts.Keys[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}
