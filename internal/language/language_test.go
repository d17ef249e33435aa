package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexec/codexec/internal/config"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Language
	}{
		{"python", Python},
		{"javascript", JavaScript},
		{"java", Java},
		{"Python", Python},
		{"JAVA", Java},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := Parse("rust")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = Parse("")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("python"))
	assert.False(t, IsSupported("go"))
}

func TestShellCommand(t *testing.T) {
	assert.Equal(t,
		"echo 'print(1)' > script.py && python script.py",
		Python.ShellCommand("print(1)"))
	assert.Equal(t,
		"echo 'console.log(2)' > script.js && node script.js",
		JavaScript.ShellCommand("console.log(2)"))
	assert.Equal(t,
		"echo 'class Main {}' > Main.java && javac Main.java && java Main",
		Java.ShellCommand("class Main {}"))
}

func TestDockerfilePath(t *testing.T) {
	cfg := &config.Config{}
	cfg.Dockerfiles.Python = "df/python"
	cfg.Dockerfiles.JavaScript = "df/javascript"
	cfg.Dockerfiles.Java = "df/java"

	assert.Equal(t, "df/python", Python.DockerfilePath(cfg))
	assert.Equal(t, "df/javascript", JavaScript.DockerfilePath(cfg))
	assert.Equal(t, "df/java", Java.DockerfilePath(cfg))
}

func TestString(t *testing.T) {
	for _, l := range All {
		parsed, err := Parse(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
}
