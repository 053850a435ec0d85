package yaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	b := []byte(`# prefix`)

	b, err := Patch(b, "cam1", "url1", "sources")
	require.Nil(t, err)

	require.Equal(t, `# prefix
sources:
  cam1: url1
`, string(b))

	b, err = Patch(b, "cam2", []string{"url2", "url3"}, "sources")
	require.Nil(t, err)

	require.Equal(t, `# prefix
sources:
  cam1: url1
  cam2:
    - url2
    - url3
`, string(b))

	b, err = Patch(b, "cam1", "url4", "sources")
	require.Nil(t, err)

	require.Equal(t, `# prefix
sources:
  cam1: url4
  cam2:
    - url2
    - url3
`, string(b))

	b, err = Patch(b, "cam2", "url5", "sources")
	require.Nil(t, err)

	require.Equal(t, `# prefix
sources:
  cam1: url4
  cam2: url5
`, string(b))

	b, err = Patch(b, "cam1", nil, "sources")
	require.Nil(t, err)

	require.Equal(t, `# prefix
sources:
  cam2: url5
`, string(b))
}

func TestPatchParings(t *testing.T) {
	b := []byte(`homekit:
  cam1:
    pin: 123-45-678
sources:
  cam1: url1
`)

	pairings := map[string]string{
		"client1": "public1",
		"client2": "public2",
	}

	b, err := Patch(b, "pairings", pairings, "homekit", "cam1")
	require.Nil(t, err)

	require.Equal(t, `homekit:
  cam1:
    pin: 123-45-678
    pairings:
      client1: public1
      client2: public2
sources:
  cam1: url1
`, string(b))
}
