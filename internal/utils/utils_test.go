package utils

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedIP(t *testing.T) {
	cidrs := []string{"185.71.76.0/27", "77.75.156.11", "2a02:5180::/32", "garbage"}

	assert.True(t, IsAllowedIP("185.71.76.5", cidrs))
	assert.True(t, IsAllowedIP("77.75.156.11", cidrs))
	assert.True(t, IsAllowedIP("2a02:5180::1", cidrs))
	assert.False(t, IsAllowedIP("185.71.76.200", cidrs))
	assert.False(t, IsAllowedIP("not-an-ip", cidrs))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/webhooks/yookassa", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r, nil))

	r.Header.Set("X-Real-IP", "185.71.76.1")
	r.Header.Set("X-Forwarded-For", "185.71.76.1")
	assert.Equal(t, "10.0.0.1", ClientIP(r, nil), "headers from an untrusted peer are ignored")
	assert.Equal(t, "10.0.0.1", ClientIP(r, []string{"192.168.0.0/16"}))

	proxies := []string{"10.0.0.0/8"}
	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "185.71.76.1", ClientIP(r, proxies))

	r.Header.Set("X-Forwarded-For", "77.75.153.10, 10.0.0.7")
	assert.Equal(t, "77.75.153.10", ClientIP(r, proxies))

	r.Header.Set("X-Forwarded-For", "185.71.76.1, 203.0.113.9, 10.0.0.7")
	assert.Equal(t, "203.0.113.9", ClientIP(r, proxies), "a client-supplied leftmost hop is not trusted")
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := map[string]*int{"a": new(int), "b": new(int)}
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				unlock := km.Lock(key)
				defer unlock()
				*counter[key]++
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, 50, *counter["a"])
	assert.Equal(t, 50, *counter["b"])
	assert.Zero(t, km.size())
}
