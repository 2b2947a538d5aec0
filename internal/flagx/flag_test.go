package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	configFlags = []string{"-c", "-config"}
	serverFlags = []string{"-a", "-d", "-l", "-r", "-k", "-n", "-s", "-m", "-b", "-z", "-v"}
)

func TestFilterArgs_SplitsConfigFromServerFlags(t *testing.T) {
	args := []string{"-c", "piggy.json", "-a", ":9090", "-m=optimistic", "-b", "250", "-config=override.json"}

	assert.Equal(t, []string{"-c", "piggy.json", "-config=override.json"}, FilterArgs(args, configFlags))
	assert.Equal(t, []string{"-a", ":9090", "-m=optimistic", "-b", "250"}, FilterArgs(args, serverFlags))
}

func TestFilterArgs_ServerFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "dsn with query string stays one value",
			args: []string{"-d", "postgres://piggy:pw@db:5432/piggysync?sslmode=disable"},
			want: []string{"-d", "postgres://piggy:pw@db:5432/piggysync?sslmode=disable"},
		},
		{
			name: "empty redis address in equals form",
			args: []string{"-r="},
			want: []string{"-r="},
		},
		{
			name: "cipher key without value",
			args: []string{"-k"},
			want: []string{"-k"},
		},
		{
			name: "following flag is not taken as the salt",
			args: []string{"-n", "-v", "debug"},
			want: []string{"-n", "-v", "debug"},
		},
		{
			name: "positional and foreign flags dropped",
			args: []string{"serve", "-x", "1", "--port=80"},
			want: []string{},
		},
		{
			name: "repeated log level keeps order",
			args: []string{"-v", "info", "-z", "Europe/Riga", "-v", "debug"},
			want: []string{"-v", "info", "-z", "Europe/Riga", "-v", "debug"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, serverFlags))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "between server flags", args: []string{"-a", ":8080", "-c", "/etc/piggysync.json", "-k", "secret"}, want: "/etc/piggysync.json"},
		{name: "long form with equals", args: []string{"-config=/etc/piggysync.json"}, want: "/etc/piggysync.json"},
		{name: "later one wins", args: []string{"-c", "base.json", "-config", "local.json"}, want: "local.json"},
		{name: "absent", args: []string{"-m", "optimistic"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = append([]string{"piggysync"}, tt.args...)
			assert.Equal(t, tt.want, JsonConfigFlags())
		})
	}
}
