package firewall

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockAfterRules = `#
# rules.input-after
#
*filter
:ufw-after-input - [0:0]
-A ufw-after-input -p udp --dport 137 -j ufw-skip-to-policy-input
COMMIT
`

func testBlock(t *testing.T) string {
	t.Helper()
	block, err := RenderBlock(BuildRules(nil))
	require.NoError(t, err)
	return block
}

func TestSpliceAppendsToStockFile(t *testing.T) {
	block := testBlock(t)

	got := Splice(stockAfterRules, block)

	assert.True(t, strings.HasPrefix(got, "#\n# rules.input-after"), "existing content must stay first")
	assert.Contains(t, got, "ufw-skip-to-policy-input")
	assert.Contains(t, got, BeginMarker)
	assert.True(t, strings.HasSuffix(got, EndMarker+"\n"))
}

func TestSpliceIntoEmptyDocument(t *testing.T) {
	block := testBlock(t)

	got := Splice("", block)
	assert.Equal(t, strings.TrimRight(block, "\n")+"\n", got)
}

func TestSpliceReplacesExistingBlock(t *testing.T) {
	oldBlock := BeginMarker + "\n-A FILTERS -s 192.0.2.1/32 -j RETURN\n" + EndMarker + "\n"
	content := stockAfterRules + "\n" + oldBlock

	got := Splice(content, testBlock(t))

	assert.NotContains(t, got, "192.0.2.1", "stale rule must be replaced")
	assert.Equal(t, 1, strings.Count(got, BeginMarker))
	assert.Equal(t, 1, strings.Count(got, EndMarker))
}

func TestSpliceIsIdempotent(t *testing.T) {
	block := testBlock(t)

	once := Splice(stockAfterRules, block)
	twice := Splice(once, block)
	assert.Equal(t, once, twice)
}

func TestSpliceRecoversTruncatedBlock(t *testing.T) {
	// A crash mid-write can leave a BEGIN without its END; the leftover
	// fragment must not survive the next apply.
	content := stockAfterRules + "\n" + BeginMarker + "\n-A FILTERS -j DROP\n"

	got := Splice(content, testBlock(t))

	assert.Equal(t, 1, strings.Count(got, BeginMarker))
	assert.Equal(t, 1, strings.Count(got, EndMarker))
	assert.Contains(t, got, "ufw-skip-to-policy-input", "content before the fragment survives")
}

func TestApplyBlockToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "after.rules")
	require.NoError(t, os.WriteFile(path, []byte(stockAfterRules), 0640))

	block := testBlock(t)
	require.NoError(t, ApplyBlockToFile(path, block))
	require.NoError(t, ApplyBlockToFile(path, block))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), BeginMarker), "repeated applies must not stack blocks")
	assert.Contains(t, string(data), "ufw-skip-to-policy-input")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
}

func TestApplyBlockToMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "after.rules")

	require.NoError(t, ApplyBlockToFile(path, testBlock(t)))
	assert.True(t, HasBlock(path))
}

func TestHasBlock(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "nope.rules")
	assert.False(t, HasBlock(missing))

	plain := filepath.Join(dir, "plain.rules")
	require.NoError(t, os.WriteFile(plain, []byte(stockAfterRules), 0640))
	assert.False(t, HasBlock(plain))

	managed := filepath.Join(dir, "managed.rules")
	require.NoError(t, ApplyBlockToFile(managed, testBlock(t)))
	assert.True(t, HasBlock(managed))
}
