package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseList(t *testing.T) {
	type testCase struct {
		input    string
		expected CPUSet
	}

	testCases := map[string]*testCase{
		"empty":          {input: "", expected: nil},
		"whitespace":     {input: " \n", expected: nil},
		"single":         {input: "3", expected: CPUSet{3}},
		"range":          {input: "0-3", expected: CPUSet{0, 1, 2, 3}},
		"mixed":          {input: "0-2,7", expected: CPUSet{0, 1, 2, 7}},
		"two ranges":     {input: "0-1,4-5", expected: CPUSet{0, 1, 4, 5}},
		"trailing nl":    {input: "0-3,7\n", expected: CPUSet{0, 1, 2, 3, 7}},
		"unordered":      {input: "7,0-2", expected: CPUSet{0, 1, 2, 7}},
		"duplicate":      {input: "1,1,1-2", expected: CPUSet{1, 2}},
		"single elem rg": {input: "5-5", expected: CPUSet{5}},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			set, err := ParseList(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, set)
		})
	}
}

func TestParseListInvalid(t *testing.T) {
	for _, input := range []string{"a", "1-", "-1", "3-1", "1,,2", "1,-", "0x2"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseList(input)
			assert.Error(t, err)
		})
	}
}

func TestCPUSetString(t *testing.T) {
	type testCase struct {
		input    CPUSet
		expected string
	}

	testCases := map[string]*testCase{
		"empty":     {input: nil, expected: ""},
		"single":    {input: CPUSet{4}, expected: "4"},
		"range":     {input: CPUSet{0, 1, 2, 3}, expected: "0-3"},
		"mixed":     {input: CPUSet{0, 1, 2, 7}, expected: "0-2,7"},
		"unsorted":  {input: CPUSet{7, 2, 1, 0}, expected: "0-2,7"},
		"pairs":     {input: CPUSet{1, 2, 4, 5}, expected: "1-2,4-5"},
		"singleton": {input: CPUSet{1, 3, 5}, expected: "1,3,5"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.input.String())
		})
	}
}

func TestCPUSetRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0-3", "0-2,7", "1,3,5", "0-1,4-6,9"} {
		set, err := ParseList(s)
		require.NoError(t, err)
		assert.Equal(t, s, set.String())
	}
}

func TestRange(t *testing.T) {
	assert.Nil(t, Range(0))
	assert.Nil(t, Range(-1))
	assert.Equal(t, CPUSet{0, 1, 2, 3}, Range(4))
	assert.True(t, Range(4).Contains(3))
	assert.False(t, Range(4).Contains(4))
	assert.Equal(t, 4, Range(4).Count())
}
