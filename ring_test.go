package chring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing(t *testing.T) {
	var (
		backendA = NewServer("10.0.0.1:80", 1)
		backendB = NewServer("10.0.0.2:80", 1)
	)

	t.Run("should return nil successor on empty ring", func(t *testing.T) {
		// Arrange
		var sut = newRing()

		// Act & Assert
		assert.Nil(t, sut.successor(0))
		assert.Nil(t, sut.successor(^uint64(0)))
		assert.Equal(t, 0, sut.size())
	})

	t.Run("should find the nearest entry at or after the query position", func(t *testing.T) {
		// Arrange
		var sut = newRing()
		sut.insert(100, backendA, 0)
		sut.insert(200, backendB, 0)
		sut.insert(300, backendA, 1)

		// Act & Assert
		assert.Equal(t, backendA, sut.successor(0))
		assert.Equal(t, backendA, sut.successor(100))
		assert.Equal(t, backendB, sut.successor(101))
		assert.Equal(t, backendB, sut.successor(200))
		assert.Equal(t, backendA, sut.successor(201))
		assert.Equal(t, backendA, sut.successor(300))
	})

	t.Run("should wrap past the maximum position to the minimum", func(t *testing.T) {
		// Arrange
		var sut = newRing()
		sut.insert(100, backendA, 0)
		sut.insert(200, backendB, 0)

		// Act & Assert
		assert.Equal(t, backendA, sut.successor(201))
		assert.Equal(t, backendA, sut.successor(^uint64(0)))
	})

	t.Run("should break position ties deterministically", func(t *testing.T) {
		// Arrange: both backends at the same position.
		var sut = newRing()
		sut.insert(500, backendB, 0)
		sut.insert(500, backendA, 0)

		// Act
		var first = sut.successor(500)

		// Assert: owner identity orders the tie, insertion order does not.
		require.NotNil(t, first)
		assert.Equal(t, backendA, first, "lower owner ID should win the tie")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, sut.successor(500))
		}
	})

	t.Run("should remove every entry of an owner", func(t *testing.T) {
		// Arrange
		var sut = newRing()
		sut.insert(100, backendA, 0)
		sut.insert(200, backendB, 0)
		sut.insert(300, backendA, 1)
		sut.insert(400, backendA, 2)

		// Act
		sut.removeOwner(backendA.ID())

		// Assert
		assert.Equal(t, 1, sut.size())
		assert.Equal(t, backendB, sut.successor(0))
		assert.Equal(t, backendB, sut.successor(300))
	})

	t.Run("should tolerate removing an unknown owner", func(t *testing.T) {
		// Arrange
		var sut = newRing()
		sut.insert(100, backendA, 0)

		// Act
		sut.removeOwner("10.9.9.9:80")

		// Assert
		assert.Equal(t, 1, sut.size())
	})

	t.Run("should be empty after removing the only owner", func(t *testing.T) {
		// Arrange
		var sut = newRing()
		for i := 0; i < 160; i++ {
			sut.insert(uint64(i)*1000, backendA, i)
		}

		// Act
		sut.removeOwner(backendA.ID())

		// Assert
		assert.Equal(t, 0, sut.size())
		assert.Nil(t, sut.successor(0))
	})
}
