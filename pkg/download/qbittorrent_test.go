package download

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractInfoHash(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01&dn=x", "abcdef0123456789abcdef0123456789abcdef01"},
		{"magnet:?xt=urn:btih:mfrgg2ltmvzxi2lunbuw4idfnzsgk3tu&dn=y", "mfrgg2ltmvzxi2lunbuw4idfnzsgk3tu"},
		{"magnet:?dn=nohash", ""},
		{"not a magnet at all", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractInfoHash(tc.uri))
	}
}

// newQBitServer fakes the subset of the qBittorrent Web API the client
// uses. Login succeeds for admin/adminadmin and sets an SID cookie.
func newQBitServer(t *testing.T, mux *http.ServeMux) *QBitClient {
	t.Helper()

	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostFormValue("username") != "admin" || r.PostFormValue("password") != "adminadmin" {
			_, _ = w.Write([]byte("Fails."))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "session-1"})
		_, _ = w.Write([]byte("Ok."))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewQBitClient(TorrentConfig{
		URL:          server.URL,
		Username:     "admin",
		Password:     "adminadmin",
		Timeout:      2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}, "/downloads")
}

func TestQBitClientHealthcheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/app/version", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("SID")
		require.NoError(t, err)
		assert.Equal(t, "session-1", cookie.Value)
		_, _ = w.Write([]byte("v5.0.1\n"))
	})
	client := newQBitServer(t, mux)

	version, err := client.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v5.0.1", version)
}

func TestQBitClientHealthcheckBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	client := newQBitServer(t, mux)
	client.password = "wrong"

	_, err := client.Healthcheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")
}

func TestQBitClientAddMagnet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostFormValue("urls"), "btih:")
		assert.Equal(t, "/downloads", r.PostFormValue("savepath"))
		_, _ = w.Write([]byte("Ok."))
	})
	client := newQBitServer(t, mux)

	hash, err := client.AddMagnet(context.Background(),
		"magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", hash)
}

func TestQBitClientAddMagnetRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Fails."))
	})
	client := newQBitServer(t, mux)

	_, err := client.AddMagnet(context.Background(),
		"magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add_magnet failed")
}

func TestQBitClientAddMagnetNoHash(t *testing.T) {
	client := newQBitServer(t, http.NewServeMux())

	_, err := client.AddMagnet(context.Background(), "magnet:?dn=nohash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot extract hash")
}

func TestQBitClientWaitComplete(t *testing.T) {
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		polls++
		info := map[string]any{
			"name":      "movie",
			"progress":  0.5,
			"state":     "downloading",
			"save_path": "/downloads",
		}
		if polls >= 3 {
			info["progress"] = 1.0
			info["content_path"] = "/downloads/movie.mkv"
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{info})
	})
	client := newQBitServer(t, mux)

	path, err := client.WaitComplete(context.Background(), "deadbeef", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "/downloads/movie.mkv", path)
	assert.GreaterOrEqual(t, polls, 3)
}

func TestQBitClientWaitCompleteErrorState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"name": "movie", "progress": 0.1, "state": "missingFiles",
		}})
	})
	client := newQBitServer(t, mux)

	_, err := client.WaitComplete(context.Background(), "deadbeef", 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error state")
}

func TestQBitClientWaitCompleteTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"name": "movie", "progress": 0.2, "state": "downloading",
		}})
	})
	client := newQBitServer(t, mux)

	_, err := client.WaitComplete(context.Background(), "deadbeef", 30*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestQBitClientDeleteTorrent(t *testing.T) {
	var deleted, deleteFiles string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/torrents/delete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		deleted = r.PostFormValue("hashes")
		deleteFiles = r.PostFormValue("deleteFiles")
	})
	client := newQBitServer(t, mux)

	require.NoError(t, client.DeleteTorrent(context.Background(), "deadbeef", true))
	assert.Equal(t, "deadbeef", deleted)
	assert.Equal(t, "true", deleteFiles)
}
