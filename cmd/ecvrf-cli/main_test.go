package main

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecretKey = "d354a0525580ab79bf67797b824a7df3ddf81ff45729175fa4d98d9f3dcd150f"
	testPublicKey = "7a66a0fe0f2bcdcea5bfb97e3e9f6b298d25899052721bc2b4f3cb570a921b23"
	testInput     = "4869204b616d756921"
	testOutput    = "8d9c5b901c05a4edf4dff80bbe970db6ca782fe785ef1375989a3fdb3a93b521f4165ea3a6d1c90ae5641bb528beb98c1eed13d36fb32951ecf163b7900e3da6"
	testProof     = "54b58f527e999ceedb24485a7629e3caa9f7deb152852a0f483a6646495fa253c4131e87ff0b48fefacf4b5be04211a77390ca85553aa2c06f0023db34e7b36194eadf11539c0ef1c8dcae09aa35580a"
)

var keygenPattern = regexp.MustCompile(`^Secret key: ([0-9a-f]{64})\nPublic key: ([0-9a-f]{64})\n$`)

func run(args ...string) (string, error) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	out, err := run("keygen")
	require.NoError(t, err)
	assert.Regexp(t, keygenPattern, out)
}

func TestProve(t *testing.T) {
	out, err := run("prove", "--input", testInput, "--secret-key", testSecretKey)
	require.NoError(t, err)
	assert.Equal(t, "Proof:  "+testProof+"\nOutput: "+testOutput+"\n", out)

	out, err = run("prove", "-i", testInput, "-s", testSecretKey)
	require.NoError(t, err)
	assert.Equal(t, "Proof:  "+testProof+"\nOutput: "+testOutput+"\n", out)
}

func TestVerify(t *testing.T) {
	out, err := run("verify", "--input", testInput, "--public-key", testPublicKey, "--proof", testProof, "--output", testOutput)
	require.NoError(t, err)
	assert.Equal(t, "Proof verified correctly!\n", out)
}

func TestProveSecondKey(t *testing.T) {
	out, err := run("prove", "-i", "01020304", "-s", "58ff3113e38280ef17b3e276c44d10ff05517309d0fe145cf66a09aefcc7bd03")
	require.NoError(t, err)
	assert.Equal(t, "Proof:  "+
		"c4b2fb9b79a994056421e19d41847442e94614b6b69999d1ef8d5a53035c49584eb729e678109e558ad975c03f0d919e826962820f0c594e9ecc41144b1aa29b0f82e9e74a815c47c3072b3bcf0f180e"+
		"\nOutput: "+
		"78f7330c689c33763859b38c9e72a0096b30e10644d383dc595ca19d9824c5c34029f09c23730dec7e06475eac3a5a36b6abf70a11ea7f5b05440d8f456a6aad"+
		"\n", out)
}

func TestEndToEnd(t *testing.T) {
	out, err := run("keygen")
	require.NoError(t, err)
	m := keygenPattern.FindStringSubmatch(out)
	require.Len(t, m, 3)

	res, err := prove("00ff", m[1])
	require.NoError(t, err)
	parts := regexp.MustCompile(`^Proof:  ([0-9a-f]{160})\nOutput: ([0-9a-f]{128})$`).FindStringSubmatch(res)
	require.Len(t, parts, 3)

	res, err = verify(parts[2], parts[1], "00ff", m[2])
	require.NoError(t, err)
	assert.Equal(t, "Proof verified correctly!", res)

	_, err = verify(parts[2], parts[1], "00fe", m[2])
	assert.EqualError(t, err, "Proof is not correct.")
}

func TestErrors(t *testing.T) {
	testCases := []struct {
		name string
		fn   func() (string, error)
		err  string
	}{
		{"bad secret key hex", func() (string, error) { return prove(testInput, "zz") }, "Invalid private key."},
		{"short secret key", func() (string, error) { return prove(testInput, "00ff") }, "Invalid private key."},
		{"bad prove input", func() (string, error) { return prove("zzzz", testSecretKey) }, "Invalid input string."},
		{"bad public key hex", func() (string, error) { return verify(testOutput, testProof, testInput, "zzzz") }, "Invalid public key."},
		{"bad public key", func() (string, error) { return verify(testOutput, testProof, testInput, "00") }, "Invalid public key."},
		{"bad verify input", func() (string, error) { return verify(testOutput, testProof, "zzzz", testPublicKey) }, "Invalid input string."},
		{"bad proof hex", func() (string, error) { return verify(testOutput, "zzzz", testInput, testPublicKey) }, "Invalid proof string."},
		{"bad output hex", func() (string, error) { return verify("zzzz", testProof, testInput, testPublicKey) }, "Invalid output string."},
		{"short output", func() (string, error) { return verify("00", testProof, testInput, testPublicKey) }, "Output must be 64 bytes."},
		{"short proof", func() (string, error) { return verify(testOutput, "00", testInput, testPublicKey) }, "Proof is not correct."},
		{"wrong output", func() (string, error) { return verify(testProof[:128], testProof, testInput, testPublicKey) }, "Proof is not correct."},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.fn()
			assert.EqualError(t, err, tc.err)
		})
	}
}

func TestMissingFlags(t *testing.T) {
	_, err := run("prove", "--input", testInput)
	assert.Error(t, err)
}
