package env_test

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/pgrepl/pgrepl/internal/helper/env"
)

func TestGetBool(t *testing.T) {
	for _, tc := range []struct {
		value         string
		fallback      bool
		expected      bool
		expectedErrIs error
	}{
		{value: "true", expected: true},
		{value: "false", expected: false},
		{value: "1", expected: true},
		{value: "", expected: false},
		{value: "", fallback: true, expected: true},
		{value: "  ", fallback: true, expected: true},
		{value: " false\n", fallback: true, expected: false},
		{value: "bad", expected: false, expectedErrIs: strconv.ErrSyntax},
		{value: "bad", fallback: true, expected: true, expectedErrIs: strconv.ErrSyntax},
	} {
		t.Run(fmt.Sprintf("value=%s,fallback=%t", tc.value, tc.fallback), func(t *testing.T) {
			t.Setenv("TEST_BOOL", tc.value)

			result, err := env.GetBool("TEST_BOOL", tc.fallback)

			if tc.expectedErrIs != nil {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectedErrIs), err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestGetInt(t *testing.T) {
	for _, tc := range []struct {
		value         string
		fallback      int
		expected      int
		expectedErrIs error
	}{
		{value: "5433", expected: 5433},
		{value: " 30 ", expected: 30},
		{value: "", expected: 0},
		{value: "", fallback: 5432, expected: 5432},
		{value: "bad", expected: 0, expectedErrIs: strconv.ErrSyntax},
		{value: "bad", fallback: 5432, expected: 5432, expectedErrIs: strconv.ErrSyntax},
	} {
		t.Run(fmt.Sprintf("value=%s,fallback=%d", tc.value, tc.fallback), func(t *testing.T) {
			t.Setenv("TEST_INT", tc.value)

			result, err := env.GetInt("TEST_INT", tc.fallback)

			if tc.expectedErrIs != nil {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectedErrIs), err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tc.expected, result)
		})
	}
}
