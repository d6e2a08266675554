package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBounds() Bounds {
	return Bounds{RowS: 5, RowE: 8, ColS: 1, ColE: 3}
}

func TestNew_Extents(t *testing.T) {
	t.Parallel()

	g, err := New(testBounds(), 1)
	require.NoError(t, err)

	assert.Equal(t, Bounds{RowS: 4, RowE: 9, ColS: 0, ColE: 4}, g.Extent())
	assert.Equal(t, 3, g.Bounds().Cols())
	assert.Equal(t, 4, g.Bounds().Rows())
	assert.Equal(t, 6, g.Stride())
	assert.Equal(t, 1, g.Ghost())
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	t.Run("empty columns", func(t *testing.T) {
		t.Parallel()
		_, err := New(Bounds{RowS: 1, RowE: 2, ColS: 3, ColE: 2}, 1)
		assert.Error(t, err)
	})

	t.Run("empty rows", func(t *testing.T) {
		t.Parallel()
		_, err := New(Bounds{RowS: 2, RowE: 1, ColS: 1, ColE: 2}, 1)
		assert.Error(t, err)
	})

	t.Run("negative ghost", func(t *testing.T) {
		t.Parallel()
		_, err := New(testBounds(), -1)
		assert.Error(t, err)
	})
}

func TestAtSet_GlobalCoordinates(t *testing.T) {
	t.Parallel()

	g := MustNew(testBounds(), 1)
	g.Set(0, 4, 1.5)
	g.Set(4, 9, 2.5)
	g.Set(2, 6, 3.5)

	assert.Equal(t, 1.5, g.At(0, 4))
	assert.Equal(t, 2.5, g.At(4, 9))
	assert.Equal(t, 3.5, g.At(2, 6))
	assert.True(t, g.InRange(0, 4))
	assert.False(t, g.InRange(-1, 4))
	assert.False(t, g.InRange(5, 5))
}

func TestAt_OutOfRangePanics(t *testing.T) {
	t.Parallel()

	g := MustNew(testBounds(), 1)
	assert.Panics(t, func() { g.At(-1, 5) })
	assert.Panics(t, func() { g.At(1, 10) })
	assert.Panics(t, func() { g.Set(5, 5, 1) })
}

func TestFillInteriorAndGhost(t *testing.T) {
	t.Parallel()

	g := MustNew(testBounds(), 1)
	g.FillInterior(2)
	g.FillGhost(func(i, j int) float64 { return -1 })

	ext := g.Extent()
	for i := ext.ColS; i <= ext.ColE; i++ {
		for j := ext.RowS; j <= ext.RowE; j++ {
			want := -1.0
			if g.Bounds().Contains(i, j) {
				want = 2
			}
			assert.Equal(t, want, g.At(i, j), "cell (%d, %d)", i, j)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	g := MustNew(testBounds(), 1)
	g.Fill(1)
	c := g.Clone()
	c.Set(2, 6, 9)

	assert.Equal(t, 1.0, g.At(2, 6))
	assert.Equal(t, 9.0, c.At(2, 6))
}

func TestCopyFrom(t *testing.T) {
	t.Parallel()

	src := MustNew(testBounds(), 1)
	src.Fill(4)
	dst := MustNew(testBounds(), 1)
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, 4.0, dst.At(0, 4))

	other := MustNew(Bounds{RowS: 1, RowE: 2, ColS: 1, ColE: 2}, 1)
	assert.Error(t, other.CopyFrom(src))
}

func TestInterior(t *testing.T) {
	t.Parallel()

	g := MustNew(Bounds{RowS: 1, RowE: 2, ColS: 1, ColE: 3}, 1)
	for i := 1; i <= 3; i++ {
		for j := 1; j <= 2; j++ {
			g.Set(i, j, float64(10*i+j))
		}
	}
	assert.Equal(t, [][]float64{{11, 12}, {21, 22}, {31, 32}}, g.Interior())
}

func TestPackUnpack(t *testing.T) {
	t.Parallel()

	b := testBounds()
	src := MustNew(b, 1)
	for i := b.ColS - 1; i <= b.ColE+1; i++ {
		for j := b.RowS - 1; j <= b.RowE+1; j++ {
			src.Set(i, j, float64(100*i+j))
		}
	}

	t.Run("contiguous column", func(t *testing.T) {
		t.Parallel()
		vals, err := src.Pack(3, 5, Contiguous(b.Rows()))
		require.NoError(t, err)
		assert.Equal(t, []float64{305, 306, 307, 308}, vals)
	})

	t.Run("strided row", func(t *testing.T) {
		t.Parallel()
		vals, err := src.Pack(1, 8, RowType(b))
		require.NoError(t, err)
		assert.Equal(t, []float64{108, 208, 308}, vals)
	})

	t.Run("unpack into ghost column", func(t *testing.T) {
		t.Parallel()
		dst := MustNew(b, 1)
		require.NoError(t, dst.Unpack(0, 5, Contiguous(4), []float64{1, 2, 3, 4}))
		assert.Equal(t, 1.0, dst.At(0, 5))
		assert.Equal(t, 4.0, dst.At(0, 8))
		assert.Equal(t, 0.0, dst.At(0, 9))
	})

	t.Run("unpack into ghost row", func(t *testing.T) {
		t.Parallel()
		dst := MustNew(b, 1)
		require.NoError(t, dst.Unpack(1, 9, RowType(b), []float64{7, 8, 9}))
		assert.Equal(t, 7.0, dst.At(1, 9))
		assert.Equal(t, 9.0, dst.At(3, 9))
		assert.Equal(t, 0.0, dst.At(4, 9))
	})

	t.Run("out of range span", func(t *testing.T) {
		t.Parallel()
		_, err := src.Pack(3, 7, Contiguous(4))
		assert.Error(t, err)
		err = src.Unpack(3, 9, RowType(b), []float64{1, 2, 3})
		assert.Error(t, err)
	})

	t.Run("length mismatch", func(t *testing.T) {
		t.Parallel()
		dst := MustNew(b, 1)
		assert.Error(t, dst.Unpack(1, 5, Contiguous(4), []float64{1}))
	})
}

func TestDatatype(t *testing.T) {
	t.Parallel()

	b := testBounds()
	assert.True(t, Contiguous(3).IsContiguous())
	assert.False(t, RowType(b).IsContiguous())
	assert.Equal(t, 3, RowType(b).Count)
	assert.Error(t, Datatype{Count: 0, DJ: 1}.Validate())
	assert.Error(t, Datatype{Count: 2, DI: 1, DJ: 1}.Validate())
	assert.Error(t, Datatype{Count: 2}.Validate())

	li, lj := RowType(b).Last(1, 5)
	assert.Equal(t, 3, li)
	assert.Equal(t, 5, lj)
}

func TestDirectionString(t *testing.T) {
	t.Parallel()

	names := make([]string, 0, len(Directions))
	for _, d := range Directions {
		names = append(names, d.String())
	}
	assert.Equal(t, []string{"left", "right", "down", "up"}, names)
	assert.Equal(t, "direction(9)", Direction(9).String())
}

func TestMismatch(t *testing.T) {
	t.Parallel()

	a := MustNew(testBounds(), 1)
	a.Fill(0.5)
	b := a.Clone()

	_, _, ok := Mismatch(a, b)
	assert.False(t, ok)

	b.Set(2, 9, 0.5000000000000001)
	i, j, ok := Mismatch(a, b)
	assert.True(t, ok)
	assert.Equal(t, [2]int{2, 9}, [2]int{i, j})

	// Negative zero is a different bit pattern.
	c := MustNew(testBounds(), 1)
	d := c.Clone()
	d.Set(1, 5, math.Copysign(0, -1))
	_, _, ok = Mismatch(c, d)
	assert.True(t, ok)

	e := MustNew(Bounds{RowS: 1, RowE: 2, ColS: 1, ColE: 2}, 1)
	i, j, ok = Mismatch(a, e)
	assert.True(t, ok)
	assert.Equal(t, [2]int{0, 4}, [2]int{i, j})
}
