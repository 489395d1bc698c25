package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/service"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

type nftResponse struct {
	ID                 string          `json:"id"`
	TokenID            *int64          `json:"tokenId,omitempty"`
	ContractAddress    string          `json:"contractAddress,omitempty"`
	Blockchain         string          `json:"blockchain"`
	MetadataURL        string          `json:"metadataUrl"`
	MetadataGatewayURL string          `json:"metadataGatewayUrl"`
	ImageURL           string          `json:"imageUrl"`
	ImageGatewayURL    string          `json:"imageGatewayUrl"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	OwnerAddress       string          `json:"ownerAddress"`
	CreatorAddress     string          `json:"creatorAddress"`
	Price              decimal.Decimal `json:"price"`
	TxHash             string          `json:"txHash,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func toNFTResponse(nft *core.NFT) nftResponse {
	resp := nftResponse{}
	copier.Copy(&resp, nft)
	return resp
}

// NFTHandlers contains HTTP handlers for NFT endpoints
type NFTHandlers struct {
	nftService *service.NFTService
	logger     zerolog.Logger
}

// NewNFTHandlers creates new NFT handlers
func NewNFTHandlers(nftService *service.NFTService, logger zerolog.Logger) *NFTHandlers {
	return &NFTHandlers{nftService: nftService, logger: logger}
}

// Create accepts a multipart upload and mints an NFT from it
func (h *NFTHandlers) Create(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, core.MaxImageSize+formOverhead)

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Image file and NFT data are required"})
		return
	}

	priceRaw := strings.TrimSpace(c.PostForm("price"))
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "price must be a valid non-negative number"})
		return
	}

	file, err := header.Open()
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	defer file.Close()

	// trust the bytes rather than the client's declared type
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		abortWithError(c, h.logger, err)
		return
	}
	head = head[:n]

	nft, err := h.nftService.Create(c.Request.Context(), *identity, core.NFTInput{
		Name:           c.PostForm("name"),
		Description:    c.PostForm("description"),
		CreatorAddress: c.PostForm("creatorAddress"),
		Price:          price,
	}, service.Upload{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(head),
		Size:        header.Size,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toNFTResponse(nft))
}

// Mine lists NFTs owned by the signed-in wallet
func (h *NFTHandlers) Mine(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}

	nfts, err := h.nftService.ListOwned(c.Request.Context(), identity.WalletAddress)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	resp := make([]nftResponse, 0, len(nfts))
	for _, nft := range nfts {
		resp = append(resp, toNFTResponse(nft))
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns one NFT by id
func (h *NFTHandlers) Get(c *gin.Context) {
	nft, err := h.nftService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toNFTResponse(nft))
}
